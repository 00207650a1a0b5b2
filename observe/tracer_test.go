package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer(t *testing.T) (Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewTracer(tp.Tracer("test")), rec
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestCallMeta_Names(t *testing.T) {
	tests := []struct {
		method   string
		wantName string
		wantSpan string
	}{
		{"/inference.GRPCInferenceService/ModelInfer", "ModelInfer", "inferstore.ModelInfer"},
		{"/inference.GRPCInferenceService/ServerLive", "ServerLive", "inferstore.ServerLive"},
		{"", "unknown", "inferstore.unknown"},
	}
	for _, tt := range tests {
		m := CallMeta{Method: tt.method}
		if m.Name() != tt.wantName || m.SpanName() != tt.wantSpan {
			t.Errorf("CallMeta{%q}: Name=%q SpanName=%q", tt.method, m.Name(), m.SpanName())
		}
	}
}

func TestTracer_SpanAttributes(t *testing.T) {
	tracer, rec := newRecordingTracer(t)

	_, span := tracer.StartSpan(context.Background(), inferMeta)
	tracer.EndSpan(span, nil)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans", len(spans))
	}
	s := spans[0]
	if s.Name() != "inferstore.ModelInfer" {
		t.Errorf("span name = %q", s.Name())
	}
	if v, ok := spanAttr(s, "inferstore.model"); !ok || v.AsString() != "resnet" {
		t.Errorf("model attribute = %v", v)
	}
	if v, ok := spanAttr(s, "inferstore.model_version"); !ok || v.AsString() != "1" {
		t.Errorf("version attribute = %v", v)
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v", s.Status())
	}
}

func TestTracer_EndSpanRecordsError(t *testing.T) {
	tracer, rec := newRecordingTracer(t)

	_, span := tracer.StartSpan(context.Background(), CallMeta{Method: "/x/ModelInfer"})
	tracer.EndSpan(span, errors.New("upstream unavailable"))

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error || s.Status().Description != "upstream unavailable" {
		t.Errorf("status = %+v", s.Status())
	}
	if len(s.Events()) == 0 {
		t.Error("error event not recorded")
	}
}

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	_, span := tracer.StartSpan(context.Background(), inferMeta)
	tracer.EndSpan(span, errors.New("x"))
}
