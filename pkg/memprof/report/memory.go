package report

import (
	"sync"

	mperrors "github.com/randalmurphal/memprof/pkg/memprof/errors"
)

// MemoryStore is an in-memory snapshot store for testing and
// short-lived sessions. Data is lost when the process exits.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot // id -> snapshot
	sessions  map[string][]string // sessionID -> ids, oldest first
	closed    bool
	max       int
}

// NewMemoryStore creates a new unbounded in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]Snapshot),
		sessions:  make(map[string][]string),
	}
}

// NewBoundedMemoryStore creates an in-memory store that rejects saves
// once it holds max snapshots. Use it when report history must stay
// within a fixed footprint.
func NewBoundedMemoryStore(max int) *MemoryStore {
	s := NewMemoryStore()
	s.max = max
	return s
}

// Save implements Store.
func (m *MemoryStore) Save(snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	old, exists := m.snapshots[snap.ID]
	if !exists && m.max > 0 && len(m.snapshots) >= m.max {
		return &mperrors.OverflowError{Capacity: m.max, Requested: len(m.snapshots) + 1}
	}

	// Copy class rows to avoid retaining the caller's slice
	m.snapshots[snap.ID] = snap.Clone()

	switch {
	case !exists:
		m.sessions[snap.SessionID] = append(m.sessions[snap.SessionID], snap.ID)
	case old.SessionID != snap.SessionID:
		m.removeFromSession(old.SessionID, snap.ID)
		m.sessions[snap.SessionID] = append(m.sessions[snap.SessionID], snap.ID)
	}

	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(id string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Snapshot{}, ErrStoreClosed
	}

	snap, ok := m.snapshots[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	// Return a copy to prevent modification
	return snap.Clone(), nil
}

// Latest implements Store.
func (m *MemoryStore) Latest(sessionID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Snapshot{}, ErrStoreClosed
	}

	ids := m.sessions[sessionID]
	if len(ids) == 0 {
		return Snapshot{}, ErrNotFound
	}

	return m.snapshots[ids[len(ids)-1]].Clone(), nil
}

// List implements Store.
func (m *MemoryStore) List(sessionID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	ids, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	infos := make([]Info, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, infoOf(m.snapshots[id]))
	}
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if snap, ok := m.snapshots[id]; ok {
		delete(m.snapshots, id)
		m.removeFromSession(snap.SessionID, id)
	}
	return nil
}

// DeleteSession implements Store.
func (m *MemoryStore) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	for _, id := range m.sessions[sessionID] {
		delete(m.snapshots, id)
	}
	delete(m.sessions, sessionID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.snapshots = nil
	m.sessions = nil
	return nil
}

// Len returns the total number of snapshots across all sessions.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.snapshots)
}

// removeFromSession drops id from a session's ordering. Callers must
// hold the write lock.
func (m *MemoryStore) removeFromSession(sessionID, id string) {
	ids := m.sessions[sessionID]
	for i, candidate := range ids {
		if candidate == id {
			m.sessions[sessionID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(m.sessions[sessionID]) == 0 {
		delete(m.sessions, sessionID)
	}
}
