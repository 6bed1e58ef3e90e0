package memprof

import (
	"log/slog"

	"github.com/randalmurphal/memprof/pkg/memprof/event"
	"github.com/randalmurphal/memprof/pkg/memprof/filter"
	"github.com/randalmurphal/memprof/pkg/memprof/host"
	"github.com/randalmurphal/memprof/pkg/memprof/observability"
)

// captureConfig holds configuration for a capture session.
type captureConfig struct {
	sessionID   string
	store       *event.Store
	sched       host.Scheduler
	storeConfig *event.StoreConfig
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	trackAll    bool
	keep        filter.Filter
}

// defaultCaptureConfig returns the default capture configuration.
func defaultCaptureConfig() captureConfig {
	return captureConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// CaptureOption configures a capture session.
type CaptureOption func(*captureConfig)

// WithStore attaches the capture to an existing event store. The
// capture does not own the store and will not close it.
//
// Without this option (or WithScheduler/WithStoreConfig) the capture
// attaches to the process-wide shared store.
func WithStore(store *event.Store) CaptureOption {
	return func(c *captureConfig) {
		c.store = store
	}
}

// WithScheduler makes the capture build a private event store
// registered against the given scheduler instead of attaching to the
// shared store. The capture owns the private store and closes it.
func WithScheduler(sched host.Scheduler) CaptureOption {
	return func(c *captureConfig) {
		c.sched = sched
	}
}

// WithStoreConfig makes the capture build a private event store with
// the given configuration. Combine with WithScheduler to choose the
// scheduler; the default scheduler is used otherwise.
//
// Example:
//
//	cap, err := memprof.NewCapture(
//	    memprof.WithStoreConfig(event.StoreConfig{
//	        Parking:         32,
//	        PoisonThreshold: 3,
//	    }))
func WithStoreConfig(config event.StoreConfig) CaptureOption {
	return func(c *captureConfig) {
		c.storeConfig = &config
	}
}

// WithLogger enables capture lifecycle logging.
// Default: nil (silent)
func WithLogger(logger *slog.Logger) CaptureOption {
	return func(c *captureConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder for capture instrumentation.
// Default: no-op
func WithMetrics(metrics observability.MetricsRecorder) CaptureOption {
	return func(c *captureConfig) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// WithSpans sets the span manager for capture tracing.
// Default: no-op
func WithSpans(spans observability.SpanManager) CaptureOption {
	return func(c *captureConfig) {
		if spans != nil {
			c.spans = spans
		}
	}
}

// WithTrackAll captures events for every class, not only explicitly
// tracked ones. Combine with WithFilter to restrict which classes
// qualify.
// Default: off
func WithTrackAll(enabled bool) CaptureOption {
	return func(c *captureConfig) {
		c.trackAll = enabled
	}
}

// WithFilter restricts track-all capture to classes the filter
// matches. Explicitly tracked classes bypass the filter.
//
// Example:
//
//	cap, err := memprof.NewCapture(
//	    memprof.WithTrackAll(true),
//	    memprof.WithFilter(filter.Prefix("MyApp::")))
func WithFilter(keep filter.Filter) CaptureOption {
	return func(c *captureConfig) {
		c.keep = keep
	}
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) CaptureOption {
	return func(c *captureConfig) {
		c.sessionID = id
	}
}

// trackConfig holds per-class tracking configuration.
type trackConfig struct {
	onAlloc func(host.Ref) error
	onFree  func(host.Ref) error
}

// TrackOption configures tracking for a single class.
type TrackOption func(*trackConfig)

// WithAllocationCallback invokes fn for every allocation of the
// tracked class, after the event is attributed. A returned error or a
// panic is contained per record and counted as a fault.
func WithAllocationCallback(fn func(host.Ref) error) TrackOption {
	return func(c *trackConfig) {
		c.onAlloc = fn
	}
}

// WithFreeCallback invokes fn for every free of the tracked class,
// after the event is attributed. A returned error or a panic is
// contained per record and counted as a fault.
func WithFreeCallback(fn func(host.Ref) error) TrackOption {
	return func(c *trackConfig) {
		c.onFree = fn
	}
}
