// Package observability provides production-grade observability for the
// profiler: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// None of them run on the allocation path: recording happens at drains,
// snapshots, and report deliveries.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds capture context to a logger.
// Returns a new logger with session_id and tracked_classes fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "cap-1a2b3c4d", 12)
//	enriched.Info("draining") // includes session_id, tracked_classes
func EnrichLogger(logger *slog.Logger, sessionID string, trackedClasses int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.Int("tracked_classes", trackedClasses),
	)
}

// LogCaptureStart logs the start of a capture session.
func LogCaptureStart(logger *slog.Logger, sessionID string) {
	if logger == nil {
		return
	}
	logger.Info("capture starting",
		slog.String("session_id", sessionID),
	)
}

// LogCaptureStop logs the end of a capture session.
func LogCaptureStop(logger *slog.Logger, sessionID string, durationMs float64, retained int) {
	if logger == nil {
		return
	}
	logger.Info("capture stopped",
		slog.String("session_id", sessionID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("retained_objects", retained),
	)
}

// LogDrain logs a completed drain pass.
func LogDrain(logger *slog.Logger, records int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event queue drained",
		slog.Int("records", records),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogFault logs a contained processor fault (non-fatal).
func LogFault(logger *slog.Logger, kind string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event fault contained",
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
}

// LogDropped logs accumulated record drops. Call it from reporting
// paths, never from the allocation path the drops happened on.
func LogDropped(logger *slog.Logger, dropped uint64) {
	if logger == nil || dropped == 0 {
		return
	}
	logger.Warn("records dropped under queue pressure",
		slog.Uint64("dropped", dropped),
	)
}

// LogReportDelivered logs a successful report delivery.
func LogReportDelivered(logger *slog.Logger, sink, snapshotID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("report delivered",
		slog.String("sink", sink),
		slog.String("snapshot_id", snapshotID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogReportError logs a report delivery failure (non-fatal).
func LogReportError(logger *slog.Logger, sink string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("report delivery failed",
		slog.String("sink", sink),
		slog.String("error", err.Error()),
	)
}

// LogSnapshotSaved logs snapshot persistence.
func LogSnapshotSaved(logger *slog.Logger, snapshotID string, classes int) {
	if logger == nil {
		return
	}
	logger.Debug("snapshot saved",
		slog.String("snapshot_id", snapshotID),
		slog.Int("classes", classes),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
