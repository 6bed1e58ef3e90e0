package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/memprof/pkg/memprof/observability"
)

// Source produces point-in-time snapshots for the reporter to publish.
type Source interface {
	Snapshot() Snapshot
}

// ReporterConfig configures the periodic reporter.
type ReporterConfig struct {
	// Interval between automatic report cycles. Zero uses the default;
	// negative disables the timer so cycles run only via Trigger or
	// Report.
	Interval time.Duration

	// MaxConcurrent bounds parallel sink deliveries within one cycle.
	MaxConcurrent int

	// Logger receives delivery outcomes. Nil uses slog.Default().
	Logger *slog.Logger

	// Metrics records delivery counts and durations. Optional.
	Metrics observability.MetricsRecorder

	// Spans traces sink deliveries. Optional.
	Spans observability.SpanManager

	// OnDeliver, if set, is invoked after every sink delivery with the
	// outcome. Called from delivery goroutines.
	OnDeliver func(sink string, err error)
}

// DefaultReporterConfig provides reasonable defaults.
var DefaultReporterConfig = ReporterConfig{
	Interval:      time.Minute,
	MaxConcurrent: 4,
}

// Reporter periodically snapshots a source and fans each snapshot out
// to its sinks. Sinks within one cycle run concurrently; cycles never
// overlap.
type Reporter struct {
	source Source
	sinks  []Sink
	cfg    ReporterConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	trigger chan struct{}

	cycles    atomic.Uint64
	delivered atomic.Uint64
	failures  atomic.Uint64
}

// ReporterStats counts reporter activity.
type ReporterStats struct {
	// Cycles is the number of completed report cycles.
	Cycles uint64

	// Delivered is the number of successful sink deliveries.
	Delivered uint64

	// Failures is the number of failed or panicked deliveries.
	Failures uint64
}

// NewReporter creates a reporter over source and sinks. Zero-valued
// config fields fall back to DefaultReporterConfig.
func NewReporter(source Source, sinks []Sink, cfg ReporterConfig) *Reporter {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultReporterConfig.Interval
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultReporterConfig.MaxConcurrent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Reporter{
		source:  source,
		sinks:   sinks,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		trigger: make(chan struct{}, 1),
	}
}

// Start begins the report loop. It is a no-op if already running.
// A closed reporter cannot be restarted.
func (r *Reporter) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.run(ctx)
}

// Close stops the loop and waits for any in-flight cycle to finish.
// It does not run a final cycle; call Report first if one is needed.
func (r *Reporter) Close() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	<-r.doneCh
	return nil
}

// Running reports whether the loop is active.
func (r *Reporter) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Trigger requests an immediate report cycle from the loop. Triggers
// arriving while one is already pending coalesce into a single cycle.
func (r *Reporter) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Report runs one cycle synchronously: snapshot the source, deliver to
// every sink. It returns the snapshot that was delivered. Safe to call
// whether or not the loop is running, but concurrent Report calls may
// overlap deliveries.
func (r *Reporter) Report(ctx context.Context) Snapshot {
	snap := r.source.Snapshot()
	r.deliver(ctx, snap)
	r.cycles.Add(1)
	return snap
}

// Stats returns delivery counters.
func (r *Reporter) Stats() ReporterStats {
	return ReporterStats{
		Cycles:    r.cycles.Load(),
		Delivered: r.delivered.Load(),
		Failures:  r.failures.Load(),
	}
}

// run is the main report loop.
func (r *Reporter) run(ctx context.Context) {
	defer close(r.doneCh)

	var tick <-chan time.Time
	if r.cfg.Interval > 0 {
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-tick:
			r.Report(ctx)
		case <-r.trigger:
			r.Report(ctx)
		}
	}
}

// deliver fans a snapshot out to all sinks concurrently.
func (r *Reporter) deliver(ctx context.Context, snap Snapshot) {
	if len(r.sinks) == 0 {
		return
	}

	limit := r.cfg.MaxConcurrent
	if limit > len(r.sinks) {
		limit = len(r.sinks)
	}

	p := pool.New().WithMaxGoroutines(limit)
	for _, s := range r.sinks {
		sink := s
		p.Go(func() {
			r.deliverOne(ctx, sink, snap)
		})
	}
	p.Wait()
}

// deliverOne delivers to a single sink, containing errors and panics.
func (r *Reporter) deliverOne(ctx context.Context, sink Sink, snap Snapshot) {
	deliverCtx := ctx
	var span trace.Span
	if r.cfg.Spans != nil {
		deliverCtx, span = r.cfg.Spans.StartReportSpan(ctx, sink.Name(), snap.ID)
	}

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("sink %s panicked: %v", sink.Name(), rec)
			}
		}()
		return sink.Deliver(deliverCtx, snap)
	}()
	elapsed := time.Since(start)

	if r.cfg.Spans != nil {
		r.cfg.Spans.EndSpanWithError(span, err)
	}
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordReport(deliverCtx, sink.Name(), elapsed, err)
	}

	if err != nil {
		r.failures.Add(1)
		observability.LogReportError(r.cfg.Logger, sink.Name(), err)
	} else {
		r.delivered.Add(1)
		observability.LogReportDelivered(r.cfg.Logger, sink.Name(), snap.ID,
			float64(elapsed.Milliseconds()))
	}

	if r.cfg.OnDeliver != nil {
		r.cfg.OnDeliver(sink.Name(), err)
	}
}
