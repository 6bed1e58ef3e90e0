package report

import "sort"

// ClassDelta is the change in one class's statistics between two
// snapshots.
type ClassDelta struct {
	Class     string `json:"class"`
	Allocated int64  `json:"allocated"`
	Freed     int64  `json:"freed"`
	Retained  int64  `json:"retained"`

	// Appeared marks classes present only in the later snapshot.
	Appeared bool `json:"appeared,omitempty"`

	// Vanished marks classes present only in the earlier snapshot.
	Vanished bool `json:"vanished,omitempty"`
}

// Diff computes per-class deltas between two snapshots, sorted by
// class name. Classes present in only one snapshot are marked Appeared
// or Vanished, with deltas relative to zero.
func Diff(before, after Snapshot) []ClassDelta {
	prev := make(map[string]ClassStat, len(before.Classes))
	for _, cs := range before.Classes {
		prev[cs.Class] = cs
	}

	deltas := make([]ClassDelta, 0, len(after.Classes))
	seen := make(map[string]bool, len(after.Classes))

	for _, cs := range after.Classes {
		seen[cs.Class] = true
		old, existed := prev[cs.Class]
		deltas = append(deltas, ClassDelta{
			Class:     cs.Class,
			Allocated: int64(cs.Allocated) - int64(old.Allocated),
			Freed:     int64(cs.Freed) - int64(old.Freed),
			Retained:  cs.Retained - old.Retained,
			Appeared:  !existed,
		})
	}

	for _, cs := range before.Classes {
		if seen[cs.Class] {
			continue
		}
		deltas = append(deltas, ClassDelta{
			Class:     cs.Class,
			Allocated: -int64(cs.Allocated),
			Freed:     -int64(cs.Freed),
			Retained:  -cs.Retained,
			Vanished:  true,
		})
	}

	sort.Slice(deltas, func(i, j int) bool {
		return deltas[i].Class < deltas[j].Class
	})

	return deltas
}
