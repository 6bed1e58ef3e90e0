package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the profiler tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("memprof")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartCaptureSpan starts a span covering a capture session.
	// Returns the context with span and the span itself.
	StartCaptureSpan(ctx context.Context, sessionID string) (context.Context, trace.Span)

	// StartFlushSpan starts a span for a synchronous flush.
	// The flush span should be a child of the capture span.
	StartFlushSpan(ctx context.Context, pending int) (context.Context, trace.Span)

	// StartReportSpan starts a span for a report delivery.
	StartReportSpan(ctx context.Context, sink, snapshotID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartCaptureSpan starts a span covering a capture session.
func (m *otelSpanManager) StartCaptureSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "memprof.capture",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartFlushSpan starts a span for a synchronous flush.
func (m *otelSpanManager) StartFlushSpan(ctx context.Context, pending int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "memprof.flush",
		trace.WithAttributes(
			attribute.Int("records.pending", pending),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartReportSpan starts a span for a report delivery.
func (m *otelSpanManager) StartReportSpan(ctx context.Context, sink, snapshotID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "memprof.report."+sink,
		trace.WithAttributes(
			attribute.String("sink", sink),
			attribute.String("snapshot.id", snapshotID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Convenience functions that operate on the global tracer.
// These are useful for simple cases where you don't need the interface.

// StartCaptureSpan starts a span covering a capture session.
// Uses the global OTel tracer.
func StartCaptureSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "memprof.capture",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartReportSpan starts a span for a report delivery.
// Uses the global OTel tracer.
func StartReportSpan(ctx context.Context, sink, snapshotID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "memprof.report."+sink,
		trace.WithAttributes(
			attribute.String("sink", sink),
			attribute.String("snapshot.id", snapshotID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
