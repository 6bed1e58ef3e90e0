package memprof

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/memprof/pkg/memprof/event"
	"github.com/randalmurphal/memprof/pkg/memprof/host"
)

// TestEventsDispatchExactlyOnceInOrder drives enqueues and drains in
// arbitrary interleavings and verifies every event is attributed
// exactly once, in insertion order.
func TestEventsDispatchExactlyOnceInOrder(t *testing.T) {
	var seen []int
	capture, sched := startedCapture(t, "Widget",
		WithAllocationCallback(func(obj host.Ref) error {
			seen = append(seen, obj.(*testObject).id)
			return nil
		}))

	next := 0
	enqueue := func(n int) {
		for i := 0; i < n; i++ {
			require.True(t, capture.ObjectAllocated("Widget", &testObject{id: next}))
			next++
		}
	}

	enqueue(3)
	sched.RunPending()
	enqueue(1)
	enqueue(2)
	sched.RunPending()
	sched.RunPending() // nothing pending, nothing reprocessed
	enqueue(4)
	sched.RunPending()

	require.Len(t, seen, next)
	for i, id := range seen {
		assert.Equal(t, i, id, "event %d dispatched out of order", i)
	}
}

// TestAllocationObservedBeforeFree verifies per-object event ordering
// survives batching across multiple drain passes.
func TestAllocationObservedBeforeFree(t *testing.T) {
	type observation struct {
		op string
		id int
	}
	var log []observation
	capture, sched := startedCapture(t, "Widget",
		WithAllocationCallback(func(obj host.Ref) error {
			log = append(log, observation{"alloc", obj.(*testObject).id})
			return nil
		}),
		WithFreeCallback(func(obj host.Ref) error {
			log = append(log, observation{"free", obj.(*testObject).id})
			return nil
		}))

	objs := objects(4)
	for _, obj := range objs {
		capture.ObjectAllocated("Widget", obj)
	}
	capture.ObjectFreed("Widget", objs[0])
	sched.RunPending()

	capture.ObjectFreed("Widget", objs[2])
	capture.ObjectFreed("Widget", objs[1])
	sched.RunPending()

	firstAlloc := make(map[int]int)
	for i, obs := range log {
		if obs.op == "alloc" {
			firstAlloc[obs.id] = i
			continue
		}
		allocAt, ok := firstAlloc[obs.id]
		require.True(t, ok, "free of object %d without a preceding alloc", obs.id)
		assert.Less(t, allocAt, i)
	}
}

// TestDrainLeavesNoQueuedReferences verifies a completed drain holds
// no object references: a collector mark walk right after must find
// nothing beyond the live set.
func TestDrainLeavesNoQueuedReferences(t *testing.T) {
	capture, sched := startedCapture(t, "Widget")
	objs := objects(3)

	for _, obj := range objs {
		capture.ObjectAllocated("Widget", obj)
	}
	sched.RunPending()
	for _, obj := range objs {
		capture.ObjectFreed("Widget", obj)
	}
	sched.RunPending()

	var marked []host.Ref
	capture.MarkLive(func(ref host.Ref) {
		if _, ok := ref.(*testObject); ok {
			marked = append(marked, ref)
		}
	})
	assert.Empty(t, marked, "drained slots must not retain object references")
}

// TestEnqueueDuringDrainLandsInNextPass verifies reentrant produce
// during a drain: the new event buffers safely and processes exactly
// once, on the following pass.
func TestEnqueueDuringDrainLandsInNextPass(t *testing.T) {
	capture, sched := newTestCapture(t)
	nested := false
	require.NoError(t, capture.Track("Widget",
		WithAllocationCallback(func(obj host.Ref) error {
			if !nested {
				nested = true
				require.True(t, capture.ObjectAllocated("Widget", &testObject{id: 999}))
			}
			return nil
		})))
	require.NoError(t, capture.Start())

	capture.ObjectAllocated("Widget", objects(1)[0])
	sched.RunPending()

	stats, _ := capture.Statistics("Widget")
	assert.Equal(t, uint64(1), stats.Allocated, "the nested event waits for the next pass")

	sched.RunPending()
	stats, _ = capture.Statistics("Widget")
	assert.Equal(t, uint64(2), stats.Allocated, "the nested event processes exactly once")

	sched.RunPending()
	stats, _ = capture.Statistics("Widget")
	assert.Equal(t, uint64(2), stats.Allocated)
}

// TestQueueGrowsThroughSustainedBurst pushes a burst far beyond the
// initial queue capacity and verifies nothing is lost or reordered.
func TestQueueGrowsThroughSustainedBurst(t *testing.T) {
	const events = 10_000
	var seen []int
	capture, sched := startedCapture(t, "Widget",
		WithAllocationCallback(func(obj host.Ref) error {
			seen = append(seen, obj.(*testObject).id)
			return nil
		}))

	for i := 0; i < events; i++ {
		require.True(t, capture.ObjectAllocated("Widget", &testObject{id: i}),
			"event %d rejected; the queue should grow instead", i)
	}
	sched.RunPending()

	require.Len(t, seen, events)
	assert.Equal(t, 0, seen[0])
	assert.Equal(t, events-1, seen[events-1])

	stats, _ := capture.Statistics("Widget")
	assert.Equal(t, uint64(events), stats.Allocated)
	assert.Equal(t, events, stats.Retained)
}

// TestFaultedRecordDoesNotAbortPass verifies a handler fault in the
// middle of a batch leaves its neighbors fully processed.
func TestFaultedRecordDoesNotAbortPass(t *testing.T) {
	var freed []int
	capture, sched := startedCapture(t, "Widget",
		WithFreeCallback(func(obj host.Ref) error {
			id := obj.(*testObject).id
			if id == 1 {
				return fmt.Errorf("object %d rejected", id)
			}
			freed = append(freed, id)
			return nil
		}))

	objs := objects(3)
	for _, obj := range objs {
		capture.ObjectAllocated("Widget", obj)
	}
	sched.RunPending()
	for _, obj := range objs {
		capture.ObjectFreed("Widget", obj)
	}
	sched.RunPending()

	assert.Equal(t, []int{0, 2}, freed)
	stats, _ := capture.Statistics("Widget")
	assert.Equal(t, uint64(3), stats.Freed, "attribution is not rolled back on callback faults")
	assert.Equal(t, uint64(1), stats.Faults)
}

// TestCoalescedTriggersDrainOnce verifies repeated triggers between
// safe points collapse into a single drain pass.
func TestCoalescedTriggersDrainOnce(t *testing.T) {
	drains := 0
	records := 0
	capture, sched := newTestCapture(t,
		WithStoreConfig(event.StoreConfig{
			OnDrain: func(n int, _ time.Duration) {
				drains++
				records += n
			},
		}))
	require.NoError(t, capture.Track("Widget"))
	require.NoError(t, capture.Start())

	for _, obj := range objects(5) {
		capture.ObjectAllocated("Widget", obj)
	}
	ran := sched.RunPending()

	assert.Equal(t, 1, ran, "five triggers coalesce into one job run")
	assert.Equal(t, 1, drains)
	assert.Equal(t, 5, records)
}

// TestSchedulerExhaustionFailsConstruction verifies a capture cannot
// be built when the host has no deferred-job slots left.
func TestSchedulerExhaustionFailsConstruction(t *testing.T) {
	sched := host.NewCooperativeScheduler(host.WithMaxJobs(1))
	_, err := sched.Register(func() {})
	require.NoError(t, err)

	_, err = NewCapture(WithScheduler(sched))
	require.Error(t, err)
	assert.ErrorIs(t, err, host.ErrNoJobSlots)

	var capErr *CaptureError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "create store", capErr.Op)
}

// TestSharedStoreCaptures verifies two captures on one store receive
// only their own events.
func TestSharedStoreCaptures(t *testing.T) {
	sched := host.NewCooperativeScheduler()
	store, err := event.NewStore(sched, event.DefaultStoreConfig)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	first, err := NewCapture(WithStore(store))
	require.NoError(t, err)
	second, err := NewCapture(WithStore(store))
	require.NoError(t, err)

	require.NoError(t, first.Track("Widget"))
	require.NoError(t, second.Track("Widget"))
	require.NoError(t, first.Start())
	require.NoError(t, second.Start())

	first.ObjectAllocated("Widget", objects(1)[0])
	second.ObjectAllocated("Widget", objects(1)[0])
	second.ObjectAllocated("Widget", objects(1)[0])
	sched.RunPending()

	firstStats, _ := first.Statistics("Widget")
	secondStats, _ := second.Statistics("Widget")
	assert.Equal(t, uint64(1), firstStats.Allocated)
	assert.Equal(t, uint64(2), secondStats.Allocated)
}

// TestEndToEndProfile exercises the whole pipeline: track, capture,
// drain, snapshot, and teardown.
func TestEndToEndProfile(t *testing.T) {
	capture, sched := newTestCapture(t)
	require.NoError(t, capture.Track("App::User"))
	require.NoError(t, capture.Track("App::Order"))
	require.NoError(t, capture.Start())

	users := objects(5)
	orders := objects(3)
	for _, u := range users {
		capture.ObjectAllocated("App::User", u)
	}
	for _, o := range orders {
		capture.ObjectAllocated("App::Order", o)
	}
	sched.RunPending()

	capture.ObjectFreed("App::User", users[0])
	capture.ObjectFreed("App::User", users[1])
	require.NoError(t, capture.Stop())

	snap := capture.Snapshot()
	require.Len(t, snap.Classes, 2)
	assert.Equal(t, int64(3+3), snap.Totals.Retained)

	userStats, ok := snap.Stat("App::User")
	require.True(t, ok)
	assert.Equal(t, uint64(5), userStats.Allocated)
	assert.Equal(t, uint64(2), userStats.Freed)
	assert.Equal(t, int64(3), userStats.Retained)

	require.NoError(t, capture.Close())
}
