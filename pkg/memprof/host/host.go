// Package host defines the contracts between the profiler and the
// managed runtime embedding it: opaque references to host-owned
// values, the collector callbacks used to keep those references
// coherent across mark and compaction passes, and the deferred-job
// scheduler that moves work out of allocation-restricted contexts to
// the host's next safe point.
package host

// Ref is an opaque reference to a value owned by the embedding host.
// The profiler stores refs without inspecting them; refs used as
// identity keys must be comparable.
type Ref any

// Marker is supplied by the host collector's liveness pass. It is
// invoked for every reference the profiler holds so the collector can
// treat the referenced value as reachable.
type Marker func(Ref)

// Relocator is supplied by a compacting collector. It is invoked for
// every reference the profiler holds and returns the reference's new
// location, which the profiler stores in place of the old one.
type Relocator func(Ref) Ref
