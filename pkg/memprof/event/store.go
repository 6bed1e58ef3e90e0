package event

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/randalmurphal/memprof/pkg/memprof/host"
	"github.com/randalmurphal/memprof/pkg/memprof/queue"
)

// warnBurst is the number of fault warnings allowed before throttling.
const warnBurst = 5

// StoreConfig configures store behavior.
type StoreConfig struct {
	// Logger receives drain diagnostics and fault warnings.
	// Default: slog.Default()
	Logger *slog.Logger

	// WarnEvery throttles contained-fault warnings to roughly one per
	// interval after an initial burst.
	// Default: 1 second
	WarnEvery time.Duration

	// Parking retains up to this many faulted records for inspection
	// and reprocessing.
	// Default: 0 (disabled)
	Parking int

	// PoisonThreshold flags a class once its records keep faulting this
	// many times, so the owner can stop tracking it.
	// Default: 0 (disabled)
	PoisonThreshold int

	// OnDrop is called when an enqueued record is dropped because the
	// available queue could not grow. Runs on the producer path, which
	// may be allocation-restricted.
	OnDrop func(rec Record)

	// OnFault is called after a processor fault is contained.
	OnFault func(rec Record, err error)

	// OnDrain is called after each completed drain pass.
	OnDrain func(records int, elapsed time.Duration)

	// OnPoison is called once when a class crosses the poison
	// threshold.
	OnPoison func(class host.Ref, failures int)
}

// DefaultStoreConfig provides reasonable defaults.
var DefaultStoreConfig = StoreConfig{
	WarnEvery: time.Second,
}

// Store owns the two event queues and orchestrates double buffering:
// one queue is "available" (accepts writes), the other "processing"
// (being drained). The roles swap at drain start, so producers appending
// during an in-progress drain never touch the queue being iterated.
//
// The store runs on the host's single logical execution path: enqueue
// may be called from allocation-restricted contexts, drain runs at
// host-chosen safe points, and neither runs concurrently with itself.
// The queues and guard flag therefore carry no locks; only the
// counters, which diagnostics read from other goroutines, are atomic.
type Store struct {
	config StoreConfig

	queues     [2]queue.Queue[Record]
	available  *queue.Queue[Record]
	processing *queue.Queue[Record]

	// Guard against nested drains.
	draining bool
	closed   bool

	sched  host.Scheduler
	handle host.JobHandle

	warnLimit *rate.Limiter

	parked *ParkedRecords
	poison *PoisonDetector

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	drains   atomic.Uint64
	faults   atomic.Uint64
}

// NewStore creates a store and registers its drain callback with the
// scheduler. Registration happens exactly once per store; a
// registration failure aborts construction, since the store cannot
// function without a safe-point hook.
func NewStore(sched host.Scheduler, config StoreConfig) (*Store, error) {
	if sched == nil {
		return nil, ErrNilScheduler
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WarnEvery <= 0 {
		config.WarnEvery = DefaultStoreConfig.WarnEvery
	}

	s := &Store{
		config:    config,
		sched:     sched,
		warnLimit: rate.NewLimiter(rate.Every(config.WarnEvery), warnBurst),
	}
	s.available = &s.queues[0]
	s.processing = &s.queues[1]

	if config.Parking > 0 {
		s.parked = NewParkedRecords(config.Parking)
	}
	if config.PoisonThreshold > 0 {
		s.poison = NewPoisonDetector(PoisonConfig{
			FailureThreshold: config.PoisonThreshold,
			OnDetect:         config.OnPoison,
		})
	}

	handle, err := sched.Register(s.drain)
	if err != nil {
		return nil, &RegistrationError{Err: err}
	}
	s.handle = handle

	return s, nil
}

var (
	sharedOnce  sync.Once
	sharedStore *Store
	sharedErr   error
)

// Shared returns the process-wide store, creating it lazily against the
// default scheduler on first use. The shared store lives for the
// process lifetime and is never closed. A creation failure is sticky:
// every subsequent call reports it.
func Shared() (*Store, error) {
	sharedOnce.Do(func() {
		sharedStore, sharedErr = NewStore(host.Default(), DefaultStoreConfig)
	})
	return sharedStore, sharedErr
}

// Enqueue appends a record to the available queue and requests a drain
// at the host's next safe point; repeated requests between drains
// coalesce into one invocation. It reports false when the record was
// dropped because the queue could not grow. A drop reduces profiling
// fidelity but is never fatal.
//
// Enqueue may be called from allocation-restricted contexts, including
// while a drain is in progress: the available queue is never the one
// being iterated.
func (s *Store) Enqueue(kind Kind, context, class, object host.Ref) bool {
	if s.closed {
		s.dropped.Add(1)
		return false
	}

	rec, ok := s.available.Push()
	if !ok {
		s.dropped.Add(1)
		if s.config.OnDrop != nil {
			s.config.OnDrop(Record{Kind: kind, Context: context, Class: class, Object: object})
		}
		return false
	}

	rec.Kind = kind
	rec.Context = context
	rec.Class = class
	rec.Object = object

	s.enqueued.Add(1)
	s.sched.Trigger(s.handle)
	return true
}

// Flush drains synchronously, guaranteeing that no events remain queued
// when it returns. It is intended for producer-owner teardown. Calling
// it while a drain is already running is a misuse and returns
// ErrDrainInProgress.
func (s *Store) Flush() error {
	if s.closed {
		return ErrStoreClosed
	}
	if s.draining {
		return ErrDrainInProgress
	}
	s.drain()
	return nil
}

// drain is the deferred callback the scheduler invokes at safe points.
// It swaps the queue roles, dispatches every buffered record in
// insertion order with per-record fault containment, and clears the
// drained queue.
func (s *Store) drain() {
	if s.draining || s.closed {
		// The deferred trigger may land while an explicit Flush is
		// already draining. Newly enqueued records sit safely in the
		// swapped-in available queue and drain on the next trigger.
		return
	}
	s.draining = true
	start := time.Now()

	// O(1) role exchange; producers keep appending to the other queue.
	s.available, s.processing = s.processing, s.available

	count := s.processing.Len()
	for i := 0; i < count; i++ {
		rec := s.processing.At(i)
		if err := s.dispatch(*rec); err != nil {
			s.faults.Add(1)
			s.containFault(*rec, err)
		}
		// Reset the slot before the count is zeroed so a mark walk
		// never sees stale references in a logically-empty slot.
		rec.clear()
	}

	s.processing.Clear()
	s.drains.Add(1)
	s.draining = false

	elapsed := time.Since(start)
	if count > 0 {
		s.config.Logger.Debug("drained event queue",
			"records", count,
			"elapsed", elapsed,
		)
	}
	if s.config.OnDrain != nil {
		s.config.OnDrain(count, elapsed)
	}
}

// dispatch hands one record to its owning context, containing panics.
func (s *Store) dispatch(rec Record) (err error) {
	proc, ok := rec.Context.(Processor)
	if !ok {
		return &DispatchError{Kind: rec.Kind, Err: ErrNoProcessor}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Kind:  rec.Kind,
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	return proc.ProcessEvent(rec)
}

// containFault records a contained fault: a throttled warning, the
// parked-record log, poison accounting, and the owner's hook. The pass
// itself continues with the next record.
func (s *Store) containFault(rec Record, err error) {
	if s.warnLimit.Allow() {
		s.config.Logger.Warn("event processor fault suppressed",
			"kind", rec.Kind.String(),
			"error", err,
		)
	}
	if s.parked != nil {
		s.parked.Park(rec, err)
	}
	if s.poison != nil {
		s.poison.RecordFailure(rec.Class)
	}
	if s.config.OnFault != nil {
		s.config.OnFault(rec, err)
	}
}

// MarkLive invokes mark for every live reference the store holds: every
// slot up to the count in the available queue, and every non-sentinel
// slot in the processing queue. The collector calls this during its
// liveness pass.
func (s *Store) MarkLive(mark host.Marker) {
	s.visitReferences(func(ref host.Ref) host.Ref {
		mark(ref)
		return ref
	})
}

// UpdateReferences rewrites every live reference the store holds to the
// location reloc returns. A compacting collector calls this after
// moving objects.
func (s *Store) UpdateReferences(reloc host.Relocator) {
	s.visitReferences(reloc)
}

// visitReferences is the shared visit-all-owned-references walk behind
// MarkLive and UpdateReferences. Sentinel slots are skipped only in the
// processing queue: a drained slot holds no live data, while every slot
// up to the available queue's count is live pending data.
func (s *Store) visitReferences(visit func(host.Ref) host.Ref) {
	visitQueue(s.available, false, visit)
	visitQueue(s.processing, true, visit)
}

func visitQueue(q *queue.Queue[Record], skipSentinel bool, visit func(host.Ref) host.Ref) {
	for i := 0; i < q.Len(); i++ {
		rec := q.At(i)
		if skipSentinel && rec.Kind == KindNone {
			continue
		}
		rec.visitRefs(visit)
	}
}

// Pending returns the number of records waiting in the available queue.
func (s *Store) Pending() int {
	return s.available.Len()
}

// Draining reports whether a drain pass is in progress.
func (s *Store) Draining() bool {
	return s.draining
}

// Parked returns the faulted records retained for inspection, oldest
// first. It returns nil when parking is disabled.
func (s *Store) Parked() []ParkedRecord {
	if s.parked == nil {
		return nil
	}
	return s.parked.All()
}

// ReprocessParked redispatches parked records, dropping the ones that
// now succeed. It reports how many succeeded. Records that fault again
// stay parked with their attempt count raised.
func (s *Store) ReprocessParked() int {
	if s.parked == nil {
		return 0
	}
	return s.parked.Reprocess(s.dispatch)
}

// Poisoned reports whether the class has crossed the poison threshold.
func (s *Store) Poisoned(class host.Ref) bool {
	if s.poison == nil {
		return false
	}
	return s.poison.Poisoned(class)
}

// Stats returns a point-in-time view of the store's counters.
func (s *Store) Stats() StoreStats {
	return StoreStats{
		Enqueued: s.enqueued.Load(),
		Dropped:  s.dropped.Load(),
		Drains:   s.drains.Load(),
		Faults:   s.faults.Load(),
		Pending:  s.Pending(),
	}
}

// StoreStats is a snapshot of store counters.
type StoreStats struct {
	Enqueued uint64 // records accepted by Enqueue
	Dropped  uint64 // records rejected by Enqueue
	Drains   uint64 // completed drain passes
	Faults   uint64 // contained processor faults
	Pending  int    // records awaiting the next drain
}

// Close releases the backing queues. Only stores owned by a single
// producer should be closed, at teardown, after a final Flush; the
// shared store is never closed. Closing during a drain is a misuse and
// returns ErrDrainInProgress.
func (s *Store) Close() error {
	if s.draining {
		return ErrDrainInProgress
	}
	if s.closed {
		return nil
	}
	s.closed = true
	s.queues[0].Free()
	s.queues[1].Free()
	return nil
}
