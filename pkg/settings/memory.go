package settings

import "sync"

// MemorySource holds settings in memory. It is safe for concurrent use.
type MemorySource struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewMemorySource creates a source holding snap.
func NewMemorySource(snap Snapshot) *MemorySource {
	return &MemorySource{snap: snap}
}

// Current returns the held snapshot.
func (m *MemorySource) Current() (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap, nil
}

// Set replaces the snapshot after validating it.
func (m *MemorySource) Set(snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	return nil
}

// Update applies fn to a copy of the snapshot and stores the result if it
// validates.
func (m *MemorySource) Update(fn func(*Snapshot)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.snap
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	m.snap = next
	return nil
}

var _ Source = (*MemorySource)(nil)
