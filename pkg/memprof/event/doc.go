// Package event provides the double-buffered record store at the heart
// of the profiler: allocation and free records are enqueued from hot
// paths, held in growable queues, and dispatched in batches at host
// safe points.
//
// # Overview
//
// A Store owns two record queues and two roles. The available queue
// receives new records from Enqueue; the processing queue is drained.
// A drain begins by swapping the roles, so records that arrive while
// handlers run land in the other queue and wait for the next pass.
// The swap is two pointer writes, which keeps the enqueue path cheap
// no matter how large a drain gets.
//
//	store, err := event.NewStore(host.Default(), event.DefaultStoreConfig)
//	if err != nil {
//		log.Fatal(err)
//	}
//	store.Enqueue(event.KindAllocated, capture, class, obj)
//
// Enqueue never dispatches. It stamps a queue slot and triggers a
// deferred drain job on the store's scheduler; the host runs the job
// at its next safe point. Callers that need records dispatched before
// continuing call Flush, which drains synchronously.
//
// # Fault Containment
//
// A handler that returns an error or panics faults that one record.
// The fault is counted, logged at a throttled rate, optionally parked
// for later inspection, and the drain moves on. One bad record never
// costs the rest of the batch.
//
// Classes that fault repeatedly can be flagged by the poison detector
// so the owner stops tracking them. Detection is passive: flagged
// classes still dispatch.
//
// # Collector Integration
//
// Queue slots hold live references that the host's collector cannot
// see on its own. MarkLive and UpdateReferences walk both queues so
// the host can keep those references alive and repoint them when
// objects move. Drained slots are reset before the queue is cleared,
// which keeps the walks and the drain safe to interleave at safe
// points.
package event
