package observe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			t.Fatalf("log line is not JSON: %v\n%s", err, line)
		}
		out = append(out, m)
	}
	return out
}

func readLogFile(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return decodeLines(t, data)
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "call completed",
		F("model", "resnet"),
		F("duration_ms", 50.5),
		F("shared", true),
	)

	entries := decodeLines(t, buf.Bytes())
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e["level"] != "info" || e["message"] != "call completed" {
		t.Errorf("level/message = %v/%v", e["level"], e["message"])
	}
	if e["model"] != "resnet" || e["duration_ms"] != 50.5 || e["shared"] != true {
		t.Errorf("fields = %v", e)
	}
	if _, ok := e["time"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"debug", []string{"debug", "info", "warn", "error"}},
		{"info", []string{"info", "warn", "error"}},
		{"warn", []string{"warn", "error"}},
		{"error", []string{"error"}},
		{"bogus", []string{"info", "warn", "error"}},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(tt.level, &buf)
			ctx := context.Background()
			logger.Debug(ctx, "d")
			logger.Info(ctx, "i")
			logger.Warn(ctx, "w")
			logger.Error(ctx, "e")

			entries := decodeLines(t, buf.Bytes())
			var got []string
			for _, e := range entries {
				got = append(got, e["level"].(string))
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("levels = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "auth",
		F("token", "abc"),
		F("Authorization", "Bearer abc"),
		F("api_key", "k"),
		F("inputs", []byte{1, 2, 3}),
		F("model", "resnet"),
	)
	out := buf.String()
	for _, secret := range []string{"abc", `"k"`, "AQID"} {
		if strings.Contains(out, secret) {
			t.Errorf("output leaks %s: %s", secret, out)
		}
	}
	if !strings.Contains(out, "resnet") {
		t.Errorf("unredacted field missing: %s", out)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("info", &buf)
	scoped := base.With(F("component", "gateway"), F("password", "hunter2"))

	scoped.Warn(context.Background(), "cache write failed", F("error", errors.New("disk full")))
	base.Info(context.Background(), "plain")

	entries := decodeLines(t, buf.Bytes())
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0]["component"] != "gateway" || entries[0]["error"] != "disk full" {
		t.Errorf("scoped entry = %v", entries[0])
	}
	if entries[0]["password"] != "[REDACTED]" {
		t.Errorf("password = %v", entries[0]["password"])
	}
	if _, ok := entries[1]["component"]; ok {
		t.Error("With must not modify the parent logger")
	}
}

func TestLogger_ContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	ctx = WithCallInfo(ctx, &CallInfo{RequestID: "req-42"})

	logger.Info(ctx, "hello")

	e := decodeLines(t, buf.Bytes())[0]
	if e["request_id"] != "req-42" {
		t.Errorf("request_id = %v", e["request_id"])
	}
	if e["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("trace_id = %v", e["trace_id"])
	}
}

func TestLogger_DurationField(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter("info", &buf).Info(context.Background(), "x", F("elapsed", 1500*time.Microsecond))
	if got := decodeLines(t, buf.Bytes())[0]["elapsed"]; got != 1.5 {
		t.Errorf("elapsed = %v, want 1.5", got)
	}
}

func TestConfiguredLogger_Console(t *testing.T) {
	path := t.TempDir() + "/console.log"
	logger, closer := newConfiguredLogger(LoggingConfig{Enabled: true, Level: "info", Format: "console", File: path})
	if closer == nil {
		t.Fatal("file logger should return a closer")
	}
	logger.Info(context.Background(), "console line", F("model", "resnet"))
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "console line") || !strings.Contains(string(data), "model=resnet") {
		t.Errorf("console output = %q", data)
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "error"} {
		if got := ParseLogLevel(name).String(); got != name {
			t.Errorf("ParseLogLevel(%q).String() = %q", name, got)
		}
	}
	if ParseLogLevel("WARN") != LevelWarn {
		t.Error("level names are case-insensitive")
	}
	if ParseLogLevel("") != LevelInfo {
		t.Error("empty level should default to info")
	}
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Info(context.Background(), "x")
	if l.With(F("a", 1)) == nil {
		t.Fatal("With returned nil")
	}
}
