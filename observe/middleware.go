package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/status"
)

// CallFunc is the signature Middleware wraps: one inbound gateway call.
type CallFunc func(ctx context.Context, meta CallMeta, req any) (any, error)

// Middleware wraps gateway calls with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe CallFunc.
//   - Context: the wrapped function sees a context carrying the span and a
//     CallInfo whose RequestID is always set.
//   - Errors: errors from the wrapped function are recorded and propagated unchanged.
//   - Ownership: request and response values are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps a CallFunc with tracing, metrics and one log entry per call.
func (m *Middleware) Wrap(fn CallFunc) CallFunc {
	return func(ctx context.Context, meta CallMeta, req any) (any, error) {
		if meta.RequestID == "" {
			meta.RequestID = NewRequestID()
		}
		info := &CallInfo{RequestID: meta.RequestID}
		ctx = WithCallInfo(ctx, info)

		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		resp, err := fn(ctx, meta, req)

		duration := time.Since(start)
		fp, outcome, shared := info.Snapshot()
		if outcome != "" {
			span.SetAttributes(attribute.String("inferstore.outcome", outcome))
		}
		if fp != "" {
			span.SetAttributes(attribute.String("inferstore.fingerprint", fp))
		}
		m.tracer.EndSpan(span, err)

		m.metrics.RecordRequest(ctx, meta, duration, err)

		fields := []Field{
			F("method", meta.Name()),
			F("duration_ms", millis(duration)),
		}
		if meta.Model != "" {
			fields = append(fields, F("model", meta.Model))
		}
		if meta.Version != "" {
			fields = append(fields, F("version", meta.Version))
		}
		if fp != "" {
			fields = append(fields, F("fingerprint", fp))
		}
		if outcome != "" {
			fields = append(fields, F("outcome", outcome))
		}
		if shared {
			fields = append(fields, F("shared", true))
		}

		if err != nil {
			fields = append(fields,
				F("code", status.Code(err).String()),
				F("error", err),
			)
			m.logger.Warn(ctx, "call failed", fields...)
		} else {
			m.logger.Info(ctx, "call completed", fields...)
		}

		return resp, err
	}
}

// Metrics returns the metrics recorder used by the middleware.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Logger returns the logger used by the middleware.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	return NewMiddleware(NewTracer(obs.Tracer()), obs.Metrics(), obs.Logger()), nil
}
