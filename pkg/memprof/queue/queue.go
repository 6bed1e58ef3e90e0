// Package queue provides a growable, contiguous store of fixed-size
// records. Records are stored by value, appended in O(1), and reset in
// bulk; there is no individual removal. Capacity only grows, doubling
// from a default floor, so steady-state operation is allocation-free
// after warm-up.
//
// The queue carries no internal concurrency control. All serialization
// is the caller's responsibility.
package queue

import (
	"math"
	"unsafe"
)

// DefaultCapacity is the capacity allocated on first growth.
const DefaultCapacity = 128

// Queue is an append-only buffer of records stored by value.
// The zero value is an empty queue ready for use.
type Queue[T any] struct {
	base  []T
	count int
}

// Push reserves a fresh tail slot and returns a pointer to it, growing
// storage if needed. It returns false when the required capacity cannot
// be represented, in which case no slot is reserved.
//
// The returned pointer is only valid until the next Push: growth may
// move the backing storage.
func (q *Queue[T]) Push() (*T, bool) {
	if q.count == len(q.base) {
		if !q.Grow(q.count + 1) {
			return nil, false
		}
	}

	slot := &q.base[q.count]
	q.count++
	return slot, true
}

// Grow ensures the queue can hold at least capacity records, doubling
// from the default floor until the requirement is covered. It returns
// false when either the record count or the byte size of the backing
// array would overflow the platform's integer range; the queue is left
// unchanged in that case.
func (q *Queue[T]) Grow(capacity int) bool {
	if capacity <= len(q.base) {
		return true
	}

	// The guards below are against the byte size of the allocation,
	// not just the record count.
	var zero T
	limit := math.MaxInt
	if elem := int(unsafe.Sizeof(zero)); elem > 0 {
		limit = math.MaxInt / elem
	}

	size := len(q.base)
	if size == 0 {
		size = DefaultCapacity
	}
	for size < capacity {
		if size > limit/2 {
			return false
		}
		size *= 2
	}
	if size > limit {
		return false
	}

	base := make([]T, size)
	copy(base, q.base[:q.count])
	q.base = base
	return true
}

// At returns a pointer to the record at index. It panics when index is
// outside [0, Len()). Returned pointers are invalidated by any Push.
func (q *Queue[T]) At(index int) *T {
	if index < 0 || index >= q.count {
		panic("queue: index out of range")
	}
	return &q.base[index]
}

// Len returns the number of records in the queue.
func (q *Queue[T]) Len() int { return q.count }

// Cap returns the allocated capacity.
func (q *Queue[T]) Cap() int { return len(q.base) }

// Clear resets the logical count to zero without releasing storage.
// Slots keep their previous contents; callers that hold references in
// records must clear them before calling Clear.
func (q *Queue[T]) Clear() { q.count = 0 }

// Free releases the backing storage. The queue is reusable afterwards
// and grows from the default floor again.
func (q *Queue[T]) Free() {
	q.base = nil
	q.count = 0
}
