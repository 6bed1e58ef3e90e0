package memprof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/memprof/pkg/memprof/event"
	"github.com/randalmurphal/memprof/pkg/memprof/filter"
	"github.com/randalmurphal/memprof/pkg/memprof/host"
	"github.com/randalmurphal/memprof/pkg/memprof/observability"
	"github.com/randalmurphal/memprof/pkg/memprof/report"
)

// NewSessionID generates a unique capture session identifier.
// Format: "cap-" followed by 8 hex characters.
func NewSessionID() string {
	return "cap-" + uuid.New().String()[:8]
}

// ClassStatistics is a point-in-time view of one tracked class.
type ClassStatistics struct {
	// Class is the tracked class name.
	Class string
	// Allocated is the number of allocation events attributed.
	Allocated uint64
	// Freed is the number of free events attributed. Only objects
	// previously seen allocated in this session count.
	Freed uint64
	// Retained is the current live object count.
	Retained int
	// Faults is the number of contained callback faults.
	Faults uint64
}

// Capture is a profiling session that attributes object lifecycle
// events to per-class statistics. It is the dispatch target for the
// records it enqueues: the event store's drain pass hands each record
// back via ProcessEvent.
//
// Trace points call ObjectAllocated and ObjectFreed from the host's
// execution path; statistics readers may run on any goroutine.
type Capture struct {
	sessionID string

	store    *event.Store
	ownStore bool

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	trackAll bool
	keep     filter.Filter

	mu          sync.RWMutex
	classes     map[string]*classAllocations
	running     bool
	closed      bool
	drainFaults int

	captureCtx  context.Context
	captureSpan trace.Span

	closers []io.Closer

	dropped atomic.Uint64
}

var _ event.Processor = (*Capture)(nil)
var _ report.Source = (*Capture)(nil)

// NewCapture creates a capture session.
//
// By default the capture attaches to the process-wide shared event
// store. WithScheduler or WithStoreConfig make it build a private
// store instead, which the capture owns and closes; WithStore attaches
// an existing store without ownership.
func NewCapture(opts ...CaptureOption) (*Capture, error) {
	cfg := defaultCaptureConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	sessionID := cfg.sessionID
	if sessionID == "" {
		sessionID = NewSessionID()
	}

	c := &Capture{
		sessionID: sessionID,
		logger:    cfg.logger,
		metrics:   cfg.metrics,
		spans:     cfg.spans,
		trackAll:  cfg.trackAll,
		keep:      cfg.keep,
		classes:   make(map[string]*classAllocations),
	}

	switch {
	case cfg.store != nil:
		c.store = cfg.store

	case cfg.storeConfig != nil || cfg.sched != nil:
		sched := cfg.sched
		if sched == nil {
			sched = host.Default()
		}
		storeCfg := event.DefaultStoreConfig
		if cfg.storeConfig != nil {
			storeCfg = *cfg.storeConfig
		}
		if storeCfg.Logger == nil {
			storeCfg.Logger = cfg.logger
		}
		c.wireStoreHooks(&storeCfg)
		store, err := event.NewStore(sched, storeCfg)
		if err != nil {
			return nil, &CaptureError{SessionID: sessionID, Op: "create store", Err: err}
		}
		c.store = store
		c.ownStore = true

	default:
		store, err := event.Shared()
		if err != nil {
			return nil, &CaptureError{SessionID: sessionID, Op: "attach store", Err: err}
		}
		c.store = store
	}

	return c, nil
}

// wireStoreHooks chains instrumentation onto a private store's hooks,
// preserving any hooks the caller configured.
func (c *Capture) wireStoreHooks(storeCfg *event.StoreConfig) {
	userDrain := storeCfg.OnDrain
	storeCfg.OnDrain = func(records int, elapsed time.Duration) {
		c.mu.Lock()
		faults := c.drainFaults
		c.drainFaults = 0
		c.mu.Unlock()
		c.metrics.RecordDrain(c.obsContext(), records, faults, elapsed)
		if userDrain != nil {
			userDrain(records, elapsed)
		}
	}

	userDrop := storeCfg.OnDrop
	storeCfg.OnDrop = func(rec event.Record) {
		c.metrics.RecordDrop(c.obsContext(), rec.Kind.String())
		if userDrop != nil {
			userDrop(rec)
		}
	}
}

// obsContext returns the running capture's span context so metrics
// correlate with the capture span, or a background context otherwise.
func (c *Capture) obsContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.captureCtx != nil {
		return c.captureCtx
	}
	return context.Background()
}

// SessionID returns the capture's session identifier.
func (c *Capture) SessionID() string {
	return c.sessionID
}

// Track selects a class for capture. Options attach per-class
// allocation and free callbacks; tracking an already-tracked class
// replaces its callbacks and keeps its statistics.
//
// A class that crossed the store's poison threshold cannot be tracked
// and returns ErrClassPoisoned.
func (c *Capture) Track(class string, opts ...TrackOption) error {
	if class == "" {
		return ErrClassRequired
	}
	if c.store.Poisoned(class) {
		return ErrClassPoisoned
	}

	var tc trackConfig
	for _, opt := range opts {
		opt(&tc)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCaptureClosed
	}

	a, ok := c.classes[class]
	if !ok {
		a = newClassAllocations()
		c.classes[class] = a
	}
	a.onAlloc = tc.onAlloc
	a.onFree = tc.onFree
	return nil
}

// Untrack removes a class and discards its statistics. Records already
// queued for the class are ignored when they drain.
func (c *Capture) Untrack(class string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.classes, class)
}

// Tracking reports whether the class is selected for capture, either
// explicitly or through track-all mode.
func (c *Capture) Tracking(class string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trackedLocked(class)
}

func (c *Capture) trackedLocked(class string) bool {
	if class == "" || c.closed {
		return false
	}
	if _, ok := c.classes[class]; ok {
		return true
	}
	return c.trackAll && (c.keep == nil || c.keep.Match(class))
}

// TrackedClasses returns the names of all classes with statistics,
// sorted. Under track-all mode, classes appear once their first event
// is attributed.
func (c *Capture) TrackedClasses() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.classes))
	for name := range c.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins event capture. Trace points only enqueue while the
// capture is running.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCaptureClosed
	}
	if c.running {
		return ErrAlreadyRunning
	}
	c.running = true
	c.captureCtx, c.captureSpan = c.spans.StartCaptureSpan(context.Background(), c.sessionID)
	observability.LogCaptureStart(c.logger, c.sessionID)
	return nil
}

// Stop flushes the store synchronously and ends capture. A flush
// failure (such as stopping from inside a drain) propagates and leaves
// the capture running.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCaptureClosed
	}
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.mu.Unlock()

	done := observability.TimedOperation()
	if err := c.Flush(); err != nil {
		return err
	}
	flushMs := done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrNotRunning
	}
	c.running = false
	if c.captureSpan != nil {
		c.spans.EndSpanWithError(c.captureSpan, nil)
		c.captureSpan = nil
		c.captureCtx = nil
	}
	observability.LogCaptureStop(c.logger, c.sessionID, flushMs, c.retainedLocked())
	if dropped := c.dropped.Load(); dropped > 0 {
		observability.LogDropped(c.logger, dropped)
	}
	return nil
}

// Running reports whether the capture is started.
func (c *Capture) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// ObjectAllocated records an allocation trace point. It reports
// whether the event was enqueued: false means the capture is not
// running, the class is not tracked, or the store rejected the record.
// Rejections are counted and never fatal.
func (c *Capture) ObjectAllocated(class string, object host.Ref) bool {
	return c.enqueue(event.KindAllocated, class, object)
}

// ObjectFreed records a free trace point. See ObjectAllocated for the
// return value.
func (c *Capture) ObjectFreed(class string, object host.Ref) bool {
	return c.enqueue(event.KindFreed, class, object)
}

func (c *Capture) enqueue(kind event.Kind, class string, object host.Ref) bool {
	c.mu.RLock()
	capture := c.running && c.trackedLocked(class)
	c.mu.RUnlock()
	if !capture {
		return false
	}
	if c.store.Poisoned(class) {
		return false
	}
	if !c.store.Enqueue(kind, c, class, object) {
		c.dropped.Add(1)
		return false
	}
	return true
}

// ProcessEvent attributes one drained record to its class: counters,
// the live set, and any per-class callbacks. A callback error or panic
// is returned as a CallbackError for the drain pass to contain.
func (c *Capture) ProcessEvent(rec event.Record) error {
	class, ok := rec.Class.(string)
	if !ok {
		return fmt.Errorf("record class: expected string, got %T", rec.Class)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	a, tracked := c.classes[class]
	if !tracked {
		// Untracked between enqueue and drain, or first sighting in
		// track-all mode.
		if !c.trackAll || (c.keep != nil && !c.keep.Match(class)) {
			c.mu.Unlock()
			return nil
		}
		a = newClassAllocations()
		c.classes[class] = a
	}

	var callback func(host.Ref) error
	var eventName string
	switch rec.Kind {
	case event.KindAllocated:
		a.recordAlloc(rec.Object)
		callback = a.onAlloc
		eventName = "alloc"
	case event.KindFreed:
		a.recordFree(rec.Object)
		callback = a.onFree
		eventName = "free"
	default:
		c.mu.Unlock()
		return fmt.Errorf("unexpected record kind %s", rec.Kind)
	}
	c.mu.Unlock()

	if callback == nil {
		return nil
	}
	if err := runCallback(callback, rec.Object); err != nil {
		c.mu.Lock()
		a.faults++
		c.drainFaults++
		c.mu.Unlock()
		return &CallbackError{Class: class, Event: eventName, Err: err}
	}
	return nil
}

// runCallback invokes a user callback, converting a panic into an
// error so the drain pass sees a uniform per-record failure.
func runCallback(fn func(host.Ref) error, obj host.Ref) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(obj)
}

// Statistics returns the statistics for one class.
func (c *Capture) Statistics(class string) (ClassStatistics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.classes[class]
	if !ok {
		return ClassStatistics{}, false
	}
	return statisticsOf(class, a), true
}

// Each calls fn for every tracked class in name order, stopping early
// if fn returns false. It iterates over a snapshot, so fn may call
// back into the capture.
func (c *Capture) Each(fn func(ClassStatistics) bool) {
	c.mu.RLock()
	stats := make([]ClassStatistics, 0, len(c.classes))
	for name, a := range c.classes {
		stats = append(stats, statisticsOf(name, a))
	}
	c.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].Class < stats[j].Class })
	for _, s := range stats {
		if !fn(s) {
			return
		}
	}
}

func statisticsOf(class string, a *classAllocations) ClassStatistics {
	return ClassStatistics{
		Class:     class,
		Allocated: a.allocated,
		Freed:     a.freed,
		Retained:  a.retained(),
		Faults:    a.faults,
	}
}

// RetainedObjects returns the live objects currently attributed to the
// class, in no particular order.
func (c *Capture) RetainedObjects(class string) []host.Ref {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.classes[class]
	if !ok {
		return nil
	}
	return a.refs()
}

// Count returns the total number of live objects across all tracked
// classes.
func (c *Capture) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retainedLocked()
}

func (c *Capture) retainedLocked() int {
	total := 0
	for _, a := range c.classes {
		total += a.retained()
	}
	return total
}

// Clear resets all class statistics and the drop counter. Tracked
// classes and their callbacks are kept.
func (c *Capture) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.classes {
		a.reset()
	}
	c.drainFaults = 0
	c.dropped.Store(0)
}

// Dropped returns the number of events this capture failed to enqueue.
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

// Snapshot returns a point-in-time aggregate of all class statistics
// for the reporting layer.
func (c *Capture) Snapshot() report.Snapshot {
	c.mu.RLock()
	classes := make([]report.ClassStat, 0, len(c.classes))
	for name, a := range c.classes {
		classes = append(classes, report.ClassStat{
			Class:     name,
			Allocated: a.allocated,
			Freed:     a.freed,
			Retained:  int64(a.retained()),
			Faults:    a.faults,
		})
	}
	c.mu.RUnlock()

	snap := report.New(c.sessionID, classes)
	c.metrics.RecordSnapshot(c.obsContext(), len(snap.Classes), snap.Totals.Retained)
	return snap
}

// Flush drains the store synchronously. Flushing from inside a drain
// pass is a misuse and returns an error wrapping
// event.ErrDrainInProgress.
func (c *Capture) Flush() error {
	_, span := c.spans.StartFlushSpan(c.obsContext(), c.store.Pending())
	err := c.store.Flush()
	c.spans.EndSpanWithError(span, err)
	if err != nil {
		return &CaptureError{SessionID: c.sessionID, Op: "flush", Err: err}
	}
	return nil
}

// MarkLive reports every object reference the capture retains to the
// collector's liveness pass. When the capture owns a private store,
// the walk covers the store's queued records too; a capture on the
// shared store leaves that store to its own walk.
func (c *Capture) MarkLive(mark host.Marker) {
	c.mu.RLock()
	for _, a := range c.classes {
		for ref := range a.live {
			mark(ref)
		}
	}
	c.mu.RUnlock()

	if c.ownStore {
		c.store.MarkLive(mark)
	}
}

// UpdateReferences rewrites every retained reference through the
// relocator after a compacting collection. Ownership of the private
// store follows the same rule as MarkLive.
func (c *Capture) UpdateReferences(reloc host.Relocator) {
	c.mu.Lock()
	for _, a := range c.classes {
		moved := make(map[host.Ref]struct{}, len(a.live))
		for ref := range a.live {
			moved[reloc(ref)] = struct{}{}
		}
		a.live = moved
	}
	c.mu.Unlock()

	if c.ownStore {
		c.store.UpdateReferences(reloc)
	}
}

// addCloser registers a resource to close with the capture. Config
// assembly uses it to tie reporter and snapshot store lifetimes to the
// session.
func (c *Capture) addCloser(closer io.Closer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, closer)
}

// Close stops the capture if running, closes config-assembled
// resources, and closes the owned store. Close failures are joined.
// Closing a closed capture is a no-op.
func (c *Capture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	running := c.running
	closers := c.closers
	c.mu.Unlock()

	var errs []error
	if running {
		if err := c.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, closer := range closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ownStore {
		if err := c.store.Close(); err != nil {
			errs = append(errs, &CaptureError{SessionID: c.sessionID, Op: "close store", Err: err})
		}
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return errors.Join(errs...)
}
