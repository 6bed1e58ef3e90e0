package memprof

import (
	"github.com/randalmurphal/memprof/pkg/memprof/host"
)

// classAllocations aggregates lifecycle counts and the live object set
// for one tracked class. Access is guarded by the owning Capture's
// mutex.
type classAllocations struct {
	live      map[host.Ref]struct{}
	allocated uint64
	freed     uint64
	faults    uint64

	onAlloc func(host.Ref) error
	onFree  func(host.Ref) error
}

func newClassAllocations() *classAllocations {
	return &classAllocations{
		live: make(map[host.Ref]struct{}),
	}
}

func (a *classAllocations) recordAlloc(obj host.Ref) {
	a.allocated++
	a.live[obj] = struct{}{}
}

// recordFree counts the free only when the object was seen allocated,
// so frees of objects predating the session don't skew retention.
func (a *classAllocations) recordFree(obj host.Ref) bool {
	if _, ok := a.live[obj]; !ok {
		return false
	}
	delete(a.live, obj)
	a.freed++
	return true
}

func (a *classAllocations) retained() int {
	return len(a.live)
}

func (a *classAllocations) refs() []host.Ref {
	refs := make([]host.Ref, 0, len(a.live))
	for ref := range a.live {
		refs = append(refs, ref)
	}
	return refs
}

// reset zeroes the counters and empties the live set. Callbacks
// attached at Track time survive.
func (a *classAllocations) reset() {
	a.live = make(map[host.Ref]struct{})
	a.allocated = 0
	a.freed = 0
	a.faults = 0
}
