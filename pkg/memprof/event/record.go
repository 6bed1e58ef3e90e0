package event

import "github.com/randalmurphal/memprof/pkg/memprof/host"

// Kind tags a captured lifecycle record.
type Kind uint8

// Record kinds. KindNone is the zero value so a cleared slot reads as
// holding no live data.
const (
	// KindNone marks an already-drained slot.
	KindNone Kind = iota

	// KindAllocated records an entity coming into existence.
	KindAllocated

	// KindFreed records an entity being destroyed.
	KindFreed
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAllocated:
		return "allocated"
	case KindFreed:
		return "freed"
	default:
		return "none"
	}
}

// Record is one captured lifecycle occurrence for a tracked entity.
// Records are stored by value in the store's queues; the store owns
// every reference a record holds from enqueue until the record is
// dispatched and its slot cleared.
type Record struct {
	// Kind tags the record.
	Kind Kind

	// Context is the capture session this record belongs to. The drain
	// pass dispatches the record to it when it implements Processor.
	Context host.Ref

	// Class identifies the entity's class or type.
	Class host.Ref

	// Object is the entity itself. It is live data only for
	// KindAllocated records: a freed entity must never be visited as
	// reachable by collector walks.
	Object host.Ref
}

// visitRefs applies visit to every live reference the record holds,
// storing the returned values back. Object is visited only for
// KindAllocated records.
func (r *Record) visitRefs(visit func(host.Ref) host.Ref) {
	r.Context = visit(r.Context)
	r.Class = visit(r.Class)
	if r.Kind == KindAllocated {
		r.Object = visit(r.Object)
	}
}

// clear resets the record to the sentinel state and releases its
// references.
func (r *Record) clear() {
	r.Kind = KindNone
	r.Context = nil
	r.Class = nil
	r.Object = nil
}

// Processor consumes one drained record, attributing it to an
// aggregation bucket. The drain pass invokes it once per record; a
// returned error or a panic is contained per record and never aborts
// the pass.
type Processor interface {
	ProcessEvent(rec Record) error
}
