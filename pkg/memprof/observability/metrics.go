package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records profiler metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDrain records a completed drain pass: how many records it
	// dispatched, how many faulted, and how long it took.
	RecordDrain(ctx context.Context, records, faults int, duration time.Duration)

	// RecordDrop records a record rejected at enqueue.
	RecordDrop(ctx context.Context, kind string)

	// RecordReport records a report delivery attempt.
	RecordReport(ctx context.Context, sink string, duration time.Duration, err error)

	// RecordSnapshot records a snapshot's shape: distinct classes and
	// total retained objects.
	RecordSnapshot(ctx context.Context, classes int, retained int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	drains          metric.Int64Counter
	drainedRecords  metric.Int64Counter
	drainLatency    metric.Float64Histogram
	eventFaults     metric.Int64Counter
	eventDrops      metric.Int64Counter
	reports         metric.Int64Counter
	reportLatency   metric.Float64Histogram
	reportErrors    metric.Int64Counter
	snapshotClasses metric.Int64Histogram
	retainedObjects metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("memprof")

	drains, err := meter.Int64Counter("memprof.drains",
		metric.WithDescription("Number of completed drain passes"),
	)
	if err != nil {
		return nil, err
	}

	drainedRecords, err := meter.Int64Counter("memprof.events.processed",
		metric.WithDescription("Number of records dispatched by drains"),
	)
	if err != nil {
		return nil, err
	}

	drainLatency, err := meter.Float64Histogram("memprof.drain.latency_ms",
		metric.WithDescription("Drain pass latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	eventFaults, err := meter.Int64Counter("memprof.events.faults",
		metric.WithDescription("Number of contained processor faults"),
	)
	if err != nil {
		return nil, err
	}

	eventDrops, err := meter.Int64Counter("memprof.events.dropped",
		metric.WithDescription("Number of records rejected at enqueue"),
	)
	if err != nil {
		return nil, err
	}

	reports, err := meter.Int64Counter("memprof.reports.delivered",
		metric.WithDescription("Number of report delivery attempts"),
	)
	if err != nil {
		return nil, err
	}

	reportLatency, err := meter.Float64Histogram("memprof.report.latency_ms",
		metric.WithDescription("Report delivery latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	reportErrors, err := meter.Int64Counter("memprof.report.errors",
		metric.WithDescription("Number of failed report deliveries"),
	)
	if err != nil {
		return nil, err
	}

	snapshotClasses, err := meter.Int64Histogram("memprof.snapshot.classes",
		metric.WithDescription("Distinct classes per snapshot"),
	)
	if err != nil {
		return nil, err
	}

	retainedObjects, err := meter.Int64Histogram("memprof.snapshot.retained_objects",
		metric.WithDescription("Retained objects per snapshot"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		drains:          drains,
		drainedRecords:  drainedRecords,
		drainLatency:    drainLatency,
		eventFaults:     eventFaults,
		eventDrops:      eventDrops,
		reports:         reports,
		reportLatency:   reportLatency,
		reportErrors:    reportErrors,
		snapshotClasses: snapshotClasses,
		retainedObjects: retainedObjects,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordDrain records a completed drain pass.
func (m *otelMetrics) RecordDrain(ctx context.Context, records, faults int, duration time.Duration) {
	m.drains.Add(ctx, 1)
	m.drainedRecords.Add(ctx, int64(records))
	m.drainLatency.Record(ctx, float64(duration.Milliseconds()))

	if faults > 0 {
		m.eventFaults.Add(ctx, int64(faults))
	}
}

// RecordDrop records a record rejected at enqueue.
func (m *otelMetrics) RecordDrop(ctx context.Context, kind string) {
	m.eventDrops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

// RecordReport records a report delivery attempt.
func (m *otelMetrics) RecordReport(ctx context.Context, sink string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("sink", sink),
		attribute.Bool("success", err == nil),
	}

	m.reports.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.reportLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("sink", sink),
	))

	if err != nil {
		m.reportErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("sink", sink),
		))
	}
}

// RecordSnapshot records a snapshot's shape.
func (m *otelMetrics) RecordSnapshot(ctx context.Context, classes int, retained int64) {
	m.snapshotClasses.Record(ctx, int64(classes))
	m.retainedObjects.Record(ctx, retained)
}
