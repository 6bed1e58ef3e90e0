package report

import (
	"fmt"
	"sync"
	"time"
)

// WindowConfig configures rollup aggregation windows.
type WindowConfig struct {
	// Duration is the window size. Zero means no time bound.
	Duration time.Duration

	// MinSnapshots is the minimum snapshots needed for completion.
	MinSnapshots int

	// MaxSnapshots triggers early completion.
	MaxSnapshots int
}

// DefaultWindowConfig provides reasonable defaults.
var DefaultWindowConfig = WindowConfig{
	Duration:     5 * time.Minute,
	MinSnapshots: 1,
	MaxSnapshots: 100,
}

// Rollup aggregates successive snapshots of one session into a window
// summary.
type Rollup struct {
	sessionID string
	window    WindowConfig
	mu        sync.Mutex
	snapshots []Snapshot
	startTime time.Time
	completed bool
}

// Summary is the aggregate of one rollup window.
type Summary struct {
	SessionID string    `json:"session_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Snapshots int       `json:"snapshots"`

	// First and Last bracket the window.
	First Snapshot `json:"first"`
	Last  Snapshot `json:"last"`

	// Delta is the per-class change from First to Last.
	Delta []ClassDelta `json:"delta"`

	// PeakRetained is the highest total retention seen in the window.
	PeakRetained int64 `json:"peak_retained"`
}

// NewRollup creates a rollup for one session's snapshots.
func NewRollup(sessionID string, window WindowConfig) *Rollup {
	return &Rollup{
		sessionID: sessionID,
		window:    window,
		snapshots: make([]Snapshot, 0),
		startTime: time.Now(),
	}
}

// Add contributes a snapshot to the window.
func (r *Rollup) Add(snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.completed {
		return fmt.Errorf("rollup already completed")
	}

	if snap.SessionID != r.sessionID {
		return fmt.Errorf("session ID mismatch: expected %s, got %s",
			r.sessionID, snap.SessionID)
	}

	r.snapshots = append(r.snapshots, snap)

	if r.window.MaxSnapshots > 0 && len(r.snapshots) >= r.window.MaxSnapshots {
		r.completed = true
	}

	return nil
}

// Complete closes the window and returns its summary. Start and End
// come from the first and last snapshot timestamps.
func (r *Rollup) Complete() (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	min := r.window.MinSnapshots
	if min < 1 {
		min = 1
	}
	if len(r.snapshots) < min {
		return Summary{}, fmt.Errorf("not enough snapshots: have %d, need %d",
			len(r.snapshots), min)
	}

	r.completed = true

	first := r.snapshots[0]
	last := r.snapshots[len(r.snapshots)-1]

	var peak int64
	for _, s := range r.snapshots {
		if s.Totals.Retained > peak {
			peak = s.Totals.Retained
		}
	}

	return Summary{
		SessionID:    r.sessionID,
		Start:        first.TakenAt,
		End:          last.TakenAt,
		Snapshots:    len(r.snapshots),
		First:        first,
		Last:         last,
		Delta:        Diff(first, last),
		PeakRetained: peak,
	}, nil
}

// IsComplete returns true once window criteria are met.
func (r *Rollup) IsComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.completed {
		return true
	}

	min := r.window.MinSnapshots
	if min < 1 {
		min = 1
	}

	// Check time window
	if r.window.Duration > 0 && time.Since(r.startTime) >= r.window.Duration {
		return len(r.snapshots) >= min
	}

	// Check max snapshots
	if r.window.MaxSnapshots > 0 && len(r.snapshots) >= r.window.MaxSnapshots {
		return true
	}

	return false
}

// Snapshots returns the collected snapshots.
func (r *Rollup) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, len(r.snapshots))
	copy(out, r.snapshots)
	return out
}

// SessionID returns the session this rollup aggregates.
func (r *Rollup) SessionID() string {
	return r.sessionID
}
