package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var inferMeta = CallMeta{Method: "/inference.GRPCInferenceService/ModelInfer", Model: "resnet", Version: "1"}

func newTestMetrics(t *testing.T) (*metricsImpl, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("newMetrics() error = %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumBy returns counter totals keyed by the value of attribute key.
func sumBy(t *testing.T, rm metricdata.ResourceMetrics, name, key string) map[string]int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("%s not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", name, m.Data)
	}
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestMetrics_RecordRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRequest(ctx, inferMeta, 10*time.Millisecond, nil)
	m.RecordRequest(ctx, inferMeta, 20*time.Millisecond, errors.New("boom"))

	rm := collect(t, reader)
	if got := sumBy(t, rm, "inferstore.requests.total", "model")["resnet"]; got != 2 {
		t.Errorf("requests.total = %d, want 2", got)
	}
	if got := sumBy(t, rm, "inferstore.requests.errors", "rpc.method")["ModelInfer"]; got != 1 {
		t.Errorf("requests.errors = %d, want 1", got)
	}

	hist := findMetric(rm, "inferstore.request.duration_ms")
	if hist == nil {
		t.Fatal("duration histogram not found")
	}
	h, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok || len(h.DataPoints) != 1 {
		t.Fatalf("histogram = %#v", hist.Data)
	}
	if h.DataPoints[0].Count != 2 || h.DataPoints[0].Sum != 30 {
		t.Errorf("count/sum = %d/%f, want 2/30", h.DataPoints[0].Count, h.DataPoints[0].Sum)
	}
}

func TestMetrics_CacheLookupOutcomes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	for _, o := range []string{OutcomeHit, OutcomeHit, OutcomeMiss, OutcomeFallback, OutcomeError} {
		m.RecordCacheLookup(ctx, inferMeta, o)
	}

	got := sumBy(t, collect(t, reader), "inferstore.cache.lookups", "outcome")
	want := map[string]int64{"hit": 2, "miss": 1, "fallback": 1, "error": 1}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("lookups[%s] = %d, want %d", k, got[k], v)
		}
	}
}

func TestMetrics_CacheWritesAndShared(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheWrite(ctx, inferMeta, WriteStored)
	m.RecordCacheWrite(ctx, inferMeta, WriteFailed)
	m.RecordInflightShared(ctx, inferMeta)
	m.RecordInflightShared(ctx, inferMeta)

	rm := collect(t, reader)
	writes := sumBy(t, rm, "inferstore.cache.writes", "result")
	if writes[WriteStored] != 1 || writes[WriteFailed] != 1 {
		t.Errorf("writes = %v", writes)
	}
	if got := sumBy(t, rm, "inferstore.inflight.shared", "model")["resnet"]; got != 2 {
		t.Errorf("inflight.shared = %d, want 2", got)
	}
}

func TestMetrics_UpstreamCalls(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUpstreamCall(ctx, "/inference.GRPCInferenceService/ModelInfer", "OK", 5*time.Millisecond)
	m.RecordUpstreamCall(ctx, "/inference.GRPCInferenceService/ModelInfer", "Unavailable", time.Millisecond)

	codes := sumBy(t, collect(t, reader), "inferstore.upstream.calls", "code")
	if codes["OK"] != 1 || codes["Unavailable"] != 1 {
		t.Errorf("upstream calls = %v", codes)
	}
}

func TestMetrics_VersionNotAnAttribute(t *testing.T) {
	for _, kv := range inferMeta.metricAttributes() {
		if kv.Key == "inferstore.model_version" || kv.Key == "version" {
			t.Errorf("metric attributes include %s", kv.Key)
		}
	}
}

func TestNopMetrics(t *testing.T) {
	m := NopMetrics()
	ctx := context.Background()
	m.RecordRequest(ctx, inferMeta, time.Millisecond, nil)
	m.RecordCacheLookup(ctx, inferMeta, OutcomeHit)
	m.RecordCacheWrite(ctx, inferMeta, WriteStored)
	m.RecordUpstreamCall(ctx, inferMeta.Method, "OK", time.Millisecond)
	m.RecordInflightShared(ctx, inferMeta)
}
