package report

import (
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Version is the current snapshot format version.
// Increment when making breaking changes to the snapshot structure.
const Version = 1

// ClassStat is one class's row in a snapshot.
type ClassStat struct {
	Class     string `json:"class"`
	Allocated uint64 `json:"allocated"`
	Freed     uint64 `json:"freed"`
	Retained  int64  `json:"retained"`
	Faults    uint64 `json:"faults"`
}

// Totals aggregates the class rows of a snapshot.
type Totals struct {
	Classes   int    `json:"classes"`
	Allocated uint64 `json:"allocated"`
	Freed     uint64 `json:"freed"`
	Retained  int64  `json:"retained"`
	Faults    uint64 `json:"faults"`
}

// Snapshot is a point-in-time aggregate of capture statistics.
type Snapshot struct {
	// Metadata
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	TakenAt   time.Time `json:"taken_at"`

	// Per-class rows, sorted by class name.
	Classes []ClassStat `json:"classes"`

	// Aggregate over all rows.
	Totals Totals `json:"totals"`
}

// New creates a snapshot from per-class rows, assigning a fresh ID and
// computing totals. The rows are copied and sorted by class name.
func New(sessionID string, classes []ClassStat) Snapshot {
	rows := make([]ClassStat, len(classes))
	copy(rows, classes)
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Class < rows[j].Class
	})

	return Snapshot{
		Version:   Version,
		ID:        NewSnapshotID(),
		SessionID: sessionID,
		TakenAt:   time.Now().UTC(),
		Classes:   rows,
		Totals:    computeTotals(rows),
	}
}

// NewSnapshotID returns a fresh snapshot identifier.
func NewSnapshotID() string {
	return "snap-" + uuid.New().String()[:8]
}

func computeTotals(classes []ClassStat) Totals {
	t := Totals{Classes: len(classes)}
	for _, cs := range classes {
		t.Allocated += cs.Allocated
		t.Freed += cs.Freed
		t.Retained += cs.Retained
		t.Faults += cs.Faults
	}
	return t
}

// Encode serializes a snapshot to JSON.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot deserializes a snapshot from JSON.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Classes = make([]ClassStat, len(s.Classes))
	copy(out.Classes, s.Classes)
	return out
}

// Stat returns the row for a class and whether it exists.
func (s Snapshot) Stat(class string) (ClassStat, bool) {
	for _, cs := range s.Classes {
		if cs.Class == class {
			return cs, true
		}
	}
	return ClassStat{}, false
}
