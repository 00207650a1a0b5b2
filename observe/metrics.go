package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Cache write results.
const (
	WriteStored  = "stored"
	WriteFailed  = "failed"
	WriteSkipped = "skipped"
)

// Metrics records gateway metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records one inbound call with duration and error status.
	RecordRequest(ctx context.Context, meta CallMeta, duration time.Duration, err error)

	// RecordCacheLookup records a lookup outcome (hit, miss, fallback or error).
	RecordCacheLookup(ctx context.Context, meta CallMeta, outcome string)

	// RecordCacheWrite records the result of persisting a response.
	RecordCacheWrite(ctx context.Context, meta CallMeta, result string)

	// RecordUpstreamCall records one call to the inference server with its
	// gRPC status code name.
	RecordUpstreamCall(ctx context.Context, method, code string, duration time.Duration)

	// RecordInflightShared records a caller that joined another caller's
	// upstream call.
	RecordInflightShared(ctx context.Context, meta CallMeta)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	totalCount       metric.Int64Counter
	errorCount       metric.Int64Counter
	durationHist     metric.Float64Histogram
	lookupCount      metric.Int64Counter
	writeCount       metric.Int64Counter
	upstreamCount    metric.Int64Counter
	upstreamDuration metric.Float64Histogram
	sharedCount      metric.Int64Counter
}

// NewMetrics creates the gateway instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	m := &metricsImpl{}
	var err error

	if m.totalCount, err = meter.Int64Counter(
		"inferstore.requests.total",
		metric.WithDescription("Total number of inbound calls"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}
	if m.errorCount, err = meter.Int64Counter(
		"inferstore.requests.errors",
		metric.WithDescription("Total number of inbound calls that failed"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.durationHist, err = meter.Float64Histogram(
		"inferstore.request.duration_ms",
		metric.WithDescription("Inbound call duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.lookupCount, err = meter.Int64Counter(
		"inferstore.cache.lookups",
		metric.WithDescription("Cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}
	if m.writeCount, err = meter.Int64Counter(
		"inferstore.cache.writes",
		metric.WithDescription("Cache writes by result"),
		metric.WithUnit("{write}"),
	); err != nil {
		return nil, err
	}
	if m.upstreamCount, err = meter.Int64Counter(
		"inferstore.upstream.calls",
		metric.WithDescription("Calls made to the inference server"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}
	if m.upstreamDuration, err = meter.Float64Histogram(
		"inferstore.upstream.duration_ms",
		metric.WithDescription("Inference server call duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.sharedCount, err = meter.Int64Counter(
		"inferstore.inflight.shared",
		metric.WithDescription("Callers served by another caller's upstream call"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metricsImpl) RecordRequest(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.metricAttributes()...)
	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, millis(duration), opt)
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, meta CallMeta, outcome string) {
	attrs := append(meta.metricAttributes(), attribute.String("outcome", outcome))
	m.lookupCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordCacheWrite(ctx context.Context, meta CallMeta, result string) {
	attrs := append(meta.metricAttributes(), attribute.String("result", result))
	m.writeCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordUpstreamCall(ctx context.Context, method, code string, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("rpc.method", CallMeta{Method: method}.Name()),
		attribute.String("code", code),
	)
	m.upstreamCount.Add(ctx, 1, opt)
	m.upstreamDuration.Record(ctx, millis(duration), opt)
}

func (m *metricsImpl) RecordInflightShared(ctx context.Context, meta CallMeta) {
	m.sharedCount.Add(ctx, 1, metric.WithAttributes(meta.metricAttributes()...))
}

// metricAttributes leaves out the version and request id to bound cardinality.
func (m CallMeta) metricAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	attrs = append(attrs, attribute.String("rpc.method", m.Name()))
	if m.Model != "" {
		attrs = append(attrs, attribute.String("model", m.Model))
	}
	return attrs
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// NopMetrics returns Metrics backed by a no-op meter.
func NopMetrics() Metrics {
	m, _ := newMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

var _ Metrics = (*metricsImpl)(nil)
