package event_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/randalmurphal/memprof/pkg/memprof/event"
	"github.com/randalmurphal/memprof/pkg/memprof/host"
)

// recorder collects every record dispatched to it, in order.
type recorder struct {
	records []event.Record
}

func (r *recorder) ProcessEvent(rec event.Record) error {
	r.records = append(r.records, rec)
	return nil
}

// faulty fails every dispatch with a fixed error until cleared.
type faulty struct {
	err   error
	calls int
}

func (f *faulty) ProcessEvent(event.Record) error {
	f.calls++
	return f.err
}

// panicky panics on every dispatch.
type panicky struct{}

func (panicky) ProcessEvent(event.Record) error {
	panic("handler exploded")
}

func newStore(t *testing.T, config event.StoreConfig) (*event.Store, *host.CooperativeScheduler) {
	t.Helper()
	sched := host.NewCooperativeScheduler()
	store, err := event.NewStore(sched, config)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, sched
}

func TestEnqueueDefersDispatch(t *testing.T) {
	store, sched := newStore(t, event.DefaultStoreConfig)
	rec := &recorder{}

	for i := 0; i < 3; i++ {
		if !store.Enqueue(event.KindAllocated, rec, "Widget", fmt.Sprintf("obj-%d", i)) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}

	// Nothing dispatches until the host reaches a safe point.
	if len(rec.records) != 0 {
		t.Fatalf("expected no dispatches before safe point, got %d", len(rec.records))
	}
	if got := store.Pending(); got != 3 {
		t.Fatalf("expected 3 pending records, got %d", got)
	}

	if ran := sched.RunPending(); ran != 1 {
		t.Fatalf("expected 1 deferred job run, got %d", ran)
	}

	if len(rec.records) != 3 {
		t.Fatalf("expected 3 dispatched records, got %d", len(rec.records))
	}
	for i, got := range rec.records {
		if got.Object != fmt.Sprintf("obj-%d", i) {
			t.Errorf("record %d out of order: got object %v", i, got.Object)
		}
	}

	stats := store.Stats()
	if stats.Enqueued != 3 || stats.Drains != 1 || stats.Pending != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRepeatedEnqueuesCoalesceIntoOneDrain(t *testing.T) {
	store, sched := newStore(t, event.DefaultStoreConfig)
	rec := &recorder{}

	for i := 0; i < 50; i++ {
		store.Enqueue(event.KindAllocated, rec, "Widget", i)
	}

	if ran := sched.RunPending(); ran != 1 {
		t.Fatalf("expected triggers to coalesce into 1 run, got %d", ran)
	}
	if got := store.Stats().Drains; got != 1 {
		t.Errorf("expected 1 drain, got %d", got)
	}
	if len(rec.records) != 50 {
		t.Errorf("expected 50 dispatched records, got %d", len(rec.records))
	}
}

func TestOrderPreservedAcrossQueueGrowth(t *testing.T) {
	store, sched := newStore(t, event.DefaultStoreConfig)
	rec := &recorder{}

	// Well past the initial queue capacity, forcing several doublings.
	const n = 500
	for i := 0; i < n; i++ {
		store.Enqueue(event.KindAllocated, rec, "Widget", i)
	}
	sched.RunPending()

	if len(rec.records) != n {
		t.Fatalf("expected %d records, got %d", n, len(rec.records))
	}
	for i, got := range rec.records {
		if got.Object != i {
			t.Fatalf("record %d out of order: got object %v", i, got.Object)
		}
	}
}

func TestFlushDrainsSynchronously(t *testing.T) {
	store, _ := newStore(t, event.DefaultStoreConfig)
	rec := &recorder{}

	store.Enqueue(event.KindAllocated, rec, "Widget", "a")
	store.Enqueue(event.KindFreed, rec, "Widget", "a")

	if err := store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(rec.records) != 2 {
		t.Fatalf("expected 2 records after flush, got %d", len(rec.records))
	}
	if got := store.Pending(); got != 0 {
		t.Errorf("expected empty queue after flush, got %d pending", got)
	}
}

// flusher calls Flush from inside a dispatch, which must be rejected.
type flusher struct {
	store *event.Store
	err   error
}

func (f *flusher) ProcessEvent(event.Record) error {
	f.err = f.store.Flush()
	return nil
}

func TestFlushDuringDrainIsMisuse(t *testing.T) {
	store, _ := newStore(t, event.DefaultStoreConfig)
	f := &flusher{store: store}

	store.Enqueue(event.KindAllocated, f, "Widget", "a")
	if err := store.Flush(); err != nil {
		t.Fatalf("outer Flush: %v", err)
	}

	if !errors.Is(f.err, event.ErrDrainInProgress) {
		t.Errorf("expected ErrDrainInProgress from nested flush, got %v", f.err)
	}
}

// spawner enqueues a follow-up record the first time it is dispatched.
type spawner struct {
	store   *event.Store
	seen    []host.Ref
	spawned bool
}

func (s *spawner) ProcessEvent(rec event.Record) error {
	s.seen = append(s.seen, rec.Object)
	if !s.spawned {
		s.spawned = true
		s.store.Enqueue(event.KindAllocated, s, "Widget", "spawned")
	}
	return nil
}

func TestEnqueueDuringDrainWaitsForNextPass(t *testing.T) {
	store, sched := newStore(t, event.DefaultStoreConfig)
	s := &spawner{store: store}

	store.Enqueue(event.KindAllocated, s, "Widget", "original")

	// First pass dispatches only the original record; the record
	// enqueued mid-drain lands in the swapped-in queue.
	sched.RunPending()
	if len(s.seen) != 1 || s.seen[0] != "original" {
		t.Fatalf("expected only the original record in first pass, got %v", s.seen)
	}
	if got := store.Pending(); got != 1 {
		t.Fatalf("expected spawned record pending, got %d", got)
	}

	// The mid-drain trigger re-arms the deferred job for a second pass.
	sched.RunPending()
	if len(s.seen) != 2 || s.seen[1] != "spawned" {
		t.Fatalf("expected spawned record in second pass, got %v", s.seen)
	}
	if got := store.Stats().Drains; got != 2 {
		t.Errorf("expected 2 drains, got %d", got)
	}
}

func TestFaultContainment(t *testing.T) {
	var faults []error
	config := event.DefaultStoreConfig
	config.OnFault = func(_ event.Record, err error) {
		faults = append(faults, err)
	}
	store, sched := newStore(t, config)

	rec := &recorder{}
	bad := &faulty{err: errors.New("handler rejected record")}

	store.Enqueue(event.KindAllocated, rec, "Widget", "a")
	store.Enqueue(event.KindAllocated, bad, "Widget", "b")
	store.Enqueue(event.KindAllocated, rec, "Widget", "c")
	sched.RunPending()

	if len(rec.records) != 2 {
		t.Errorf("expected healthy records to dispatch, got %d", len(rec.records))
	}
	if bad.calls != 1 {
		t.Errorf("expected faulty handler called once, got %d", bad.calls)
	}
	if len(faults) != 1 || !errors.Is(faults[0], bad.err) {
		t.Errorf("expected 1 contained fault wrapping the handler error, got %v", faults)
	}
	if got := store.Stats().Faults; got != 1 {
		t.Errorf("expected 1 fault counted, got %d", got)
	}
	if got := store.Pending(); got != 0 {
		t.Errorf("expected queue cleared despite fault, got %d pending", got)
	}
}

func TestPanicContainment(t *testing.T) {
	var faults []error
	config := event.DefaultStoreConfig
	config.OnFault = func(_ event.Record, err error) {
		faults = append(faults, err)
	}
	store, sched := newStore(t, config)

	rec := &recorder{}
	store.Enqueue(event.KindAllocated, rec, "Widget", "a")
	store.Enqueue(event.KindAllocated, panicky{}, "Widget", "b")
	store.Enqueue(event.KindAllocated, rec, "Widget", "c")
	sched.RunPending()

	if len(rec.records) != 2 {
		t.Errorf("expected healthy records to dispatch past the panic, got %d", len(rec.records))
	}
	if len(faults) != 1 {
		t.Fatalf("expected 1 contained fault, got %d", len(faults))
	}

	var pe *event.PanicError
	if !errors.As(faults[0], &pe) {
		t.Fatalf("expected PanicError, got %T", faults[0])
	}
	if pe.Value != "handler exploded" {
		t.Errorf("unexpected panic value: %v", pe.Value)
	}
	if pe.Stack == "" {
		t.Error("expected panic stack to be captured")
	}
}

func TestContextWithoutProcessorFaults(t *testing.T) {
	var faults []error
	config := event.DefaultStoreConfig
	config.OnFault = func(_ event.Record, err error) {
		faults = append(faults, err)
	}
	store, sched := newStore(t, config)

	store.Enqueue(event.KindAllocated, "not a processor", "Widget", "a")
	sched.RunPending()

	if len(faults) != 1 || !errors.Is(faults[0], event.ErrNoProcessor) {
		t.Errorf("expected ErrNoProcessor fault, got %v", faults)
	}
}

func TestMarkLiveVisitsPendingRecords(t *testing.T) {
	store, _ := newStore(t, event.DefaultStoreConfig)
	rec := &recorder{}

	store.Enqueue(event.KindAllocated, rec, "Widget", "kept")
	store.Enqueue(event.KindFreed, rec, "Widget", "gone")

	var marked []host.Ref
	store.MarkLive(func(ref host.Ref) {
		marked = append(marked, ref)
	})

	if !containsRef(marked, "kept") {
		t.Error("expected allocated object to be marked")
	}
	// A freed object's ref is dead weight: marking it would resurrect
	// the object the record is reporting as gone.
	if containsRef(marked, "gone") {
		t.Error("freed object must not be marked")
	}
	if !containsRef(marked, "Widget") {
		t.Error("expected class refs to be marked")
	}
}

func TestUpdateReferencesRewritesSlots(t *testing.T) {
	store, sched := newStore(t, event.DefaultStoreConfig)
	rec := &recorder{}

	store.Enqueue(event.KindAllocated, rec, "Widget", "old-address")
	store.UpdateReferences(func(ref host.Ref) host.Ref {
		if ref == "old-address" {
			return "new-address"
		}
		return ref
	})
	sched.RunPending()

	if len(rec.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(rec.records))
	}
	if got := rec.records[0].Object; got != "new-address" {
		t.Errorf("expected relocated object ref, got %v", got)
	}
}

// walker marks live references during its own dispatch, capturing what
// a collector pass would see mid-drain.
type walker struct {
	store *event.Store
	marks [][]host.Ref
}

func (w *walker) ProcessEvent(event.Record) error {
	var seen []host.Ref
	w.store.MarkLive(func(ref host.Ref) {
		seen = append(seen, ref)
	})
	w.marks = append(w.marks, seen)
	return nil
}

func TestWalkSkipsDrainedSlotsMidDrain(t *testing.T) {
	store, sched := newStore(t, event.DefaultStoreConfig)
	w := &walker{store: store}

	store.Enqueue(event.KindAllocated, w, "Widget", "first")
	store.Enqueue(event.KindAllocated, w, "Widget", "second")
	sched.RunPending()

	if len(w.marks) != 2 {
		t.Fatalf("expected 2 mid-drain walks, got %d", len(w.marks))
	}
	// While the first record dispatches, both slots still hold data.
	if !containsRef(w.marks[0], "first") || !containsRef(w.marks[0], "second") {
		t.Errorf("first walk should see both records, got %v", w.marks[0])
	}
	// By the second dispatch the first slot has been reset; its stale
	// refs must be invisible to the walk.
	if containsRef(w.marks[1], "first") {
		t.Errorf("second walk saw a drained slot, got %v", w.marks[1])
	}
	if !containsRef(w.marks[1], "second") {
		t.Errorf("second walk should see the record being dispatched, got %v", w.marks[1])
	}
}

func TestParkedRecordsRetainedAndReprocessed(t *testing.T) {
	config := event.DefaultStoreConfig
	config.Parking = 10
	store, sched := newStore(t, config)

	bad := &faulty{err: errors.New("transient handler failure")}
	store.Enqueue(event.KindAllocated, bad, "Widget", "a")
	sched.RunPending()

	parked := store.Parked()
	if len(parked) != 1 {
		t.Fatalf("expected 1 parked record, got %d", len(parked))
	}
	if !errors.Is(parked[0].Err, bad.err) {
		t.Errorf("expected parked error to wrap handler error, got %v", parked[0].Err)
	}

	// Still failing: the record stays parked with another attempt.
	if got := store.ReprocessParked(); got != 0 {
		t.Fatalf("expected no recoveries while handler fails, got %d", got)
	}
	if parked := store.Parked(); len(parked) != 1 || parked[0].Attempts != 2 {
		t.Fatalf("expected record parked with 2 attempts, got %+v", parked)
	}

	// Handler recovers: reprocessing clears the log.
	bad.err = nil
	if got := store.ReprocessParked(); got != 1 {
		t.Fatalf("expected 1 recovery, got %d", got)
	}
	if got := store.Parked(); len(got) != 0 {
		t.Errorf("expected empty parked log, got %d", len(got))
	}
}

func TestPoisonedClassFlagged(t *testing.T) {
	var detected []host.Ref
	config := event.DefaultStoreConfig
	config.PoisonThreshold = 3
	config.OnPoison = func(class host.Ref, failures int) {
		detected = append(detected, class)
	}
	store, sched := newStore(t, config)

	bad := &faulty{err: errors.New("permanent handler failure")}
	for i := 0; i < 5; i++ {
		store.Enqueue(event.KindAllocated, bad, "Widget", i)
	}
	store.Enqueue(event.KindAllocated, &recorder{}, "Gadget", "fine")
	sched.RunPending()

	if !store.Poisoned("Widget") {
		t.Error("expected Widget flagged after repeated faults")
	}
	if store.Poisoned("Gadget") {
		t.Error("Gadget never faulted and must not be flagged")
	}
	if len(detected) != 1 || detected[0] != "Widget" {
		t.Errorf("expected one detection for Widget, got %v", detected)
	}
	// Detection is passive: every record still dispatched.
	if bad.calls != 5 {
		t.Errorf("expected all 5 records dispatched, got %d", bad.calls)
	}
}

func TestEnqueueAfterCloseDropped(t *testing.T) {
	store, _ := newStore(t, event.DefaultStoreConfig)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if store.Enqueue(event.KindAllocated, &recorder{}, "Widget", "a") {
		t.Error("expected enqueue on closed store to be rejected")
	}
	if got := store.Stats().Dropped; got != 1 {
		t.Errorf("expected 1 dropped record, got %d", got)
	}
	if err := store.Flush(); !errors.Is(err, event.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed from flush, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	store, _ := newStore(t, event.DefaultStoreConfig)
	if err := store.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

// closer closes its own store mid-dispatch, which must be rejected.
type closer struct {
	store *event.Store
	err   error
}

func (c *closer) ProcessEvent(event.Record) error {
	c.err = c.store.Close()
	return nil
}

func TestCloseDuringDrainIsMisuse(t *testing.T) {
	store, _ := newStore(t, event.DefaultStoreConfig)
	c := &closer{store: store}

	store.Enqueue(event.KindAllocated, c, "Widget", "a")
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if !errors.Is(c.err, event.ErrDrainInProgress) {
		t.Errorf("expected ErrDrainInProgress from mid-drain close, got %v", c.err)
	}
}

func TestNewStoreRequiresScheduler(t *testing.T) {
	_, err := event.NewStore(nil, event.DefaultStoreConfig)
	if !errors.Is(err, event.ErrNilScheduler) {
		t.Errorf("expected ErrNilScheduler, got %v", err)
	}
}

func TestSharedStoreIsSingleton(t *testing.T) {
	first, err := event.Shared()
	if err != nil {
		t.Fatalf("Shared: %v", err)
	}
	second, err := event.Shared()
	if err != nil {
		t.Fatalf("Shared: %v", err)
	}
	if first != second {
		t.Error("expected the same shared store on every call")
	}
}

func TestDrainHookReportsBatch(t *testing.T) {
	var batches []int
	config := event.DefaultStoreConfig
	config.OnDrain = func(records int, _ time.Duration) {
		batches = append(batches, records)
	}
	store, sched := newStore(t, config)

	rec := &recorder{}
	store.Enqueue(event.KindAllocated, rec, "Widget", "a")
	store.Enqueue(event.KindAllocated, rec, "Widget", "b")
	sched.RunPending()

	if len(batches) != 1 || batches[0] != 2 {
		t.Errorf("expected one drain of 2 records, got %v", batches)
	}
}

func containsRef(refs []host.Ref, want host.Ref) bool {
	for _, ref := range refs {
		if ref == want {
			return true
		}
	}
	return false
}
