package observe

import (
	"context"
	"path"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CallMeta identifies an inbound gateway call for telemetry purposes.
type CallMeta struct {
	Method    string // full gRPC method, e.g. /inference.GRPCInferenceService/ModelInfer
	Model     string // model name (may be empty for server-level calls)
	Version   string // model version (optional)
	RequestID string // client supplied request id (optional)
}

// Name returns the short method name.
func (m CallMeta) Name() string {
	if m.Method == "" {
		return "unknown"
	}
	return path.Base(m.Method)
}

// SpanName returns the deterministic span name for this call.
// Format: inferstore.<Method>
func (m CallMeta) SpanName() string {
	return "inferstore." + m.Name()
}

func (m CallMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("rpc.method", m.Name())}
	if m.Model != "" {
		attrs = append(attrs, attribute.String("inferstore.model", m.Model))
	}
	if m.Version != "" {
		attrs = append(attrs, attribute.String("inferstore.model_version", m.Version))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with call-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a gateway call.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a Tracer whose spans record nothing.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
