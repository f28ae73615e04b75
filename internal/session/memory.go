package session

import (
	"context"
	"sync"
)

// MemoryStorage keeps the snapshot in process memory. It backs tests and
// short-lived commands that must not touch disk.
type MemoryStorage struct {
	mu    sync.Mutex
	snap  *Snapshot
	saves int
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snap == nil {
		return nil, nil
	}
	c := *m.snap
	c.User = cloneUser(m.snap.User)
	return &c, nil
}

func (m *MemoryStorage) Save(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap.User = cloneUser(snap.User)
	m.snap = &snap
	m.saves++
	return nil
}

func (m *MemoryStorage) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snap = nil
	return nil
}

// Saves returns how many times Save has been called.
func (m *MemoryStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
