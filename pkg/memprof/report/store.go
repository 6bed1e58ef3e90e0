package report

import (
	"errors"
	"time"
)

// Store persists snapshots across report cycles.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a snapshot.
	// Overwrites if a snapshot with the same ID already exists.
	Save(snap Snapshot) error

	// Load retrieves a snapshot by ID.
	// Returns ErrNotFound if the snapshot doesn't exist.
	Load(id string) (Snapshot, error)

	// Latest returns the most recently saved snapshot for a session.
	// Returns ErrNotFound if the session has no snapshots.
	Latest(sessionID string) (Snapshot, error)

	// List returns summaries for all of a session's snapshots, oldest
	// first. Returns empty slice (not error) if the session has none.
	List(sessionID string) ([]Info, error)

	// Delete removes a specific snapshot.
	// Returns nil if the snapshot doesn't exist.
	Delete(id string) error

	// DeleteSession removes all snapshots for a session.
	// Returns nil if the session has no snapshots.
	DeleteSession(sessionID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides snapshot metadata without loading full class rows.
type Info struct {
	ID        string
	SessionID string
	TakenAt   time.Time
	Classes   int
	Retained  int64
}

func infoOf(snap Snapshot) Info {
	return Info{
		ID:        snap.ID,
		SessionID: snap.SessionID,
		TakenAt:   snap.TakenAt,
		Classes:   len(snap.Classes),
		Retained:  snap.Totals.Retained,
	}
}

// Sentinel errors for snapshot storage.
var (
	// ErrNotFound indicates a snapshot doesn't exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")
)
