package store

import (
	"context"
	"sync"

	"github.com/stevemurr/boxgrid/grid"
)

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	boxes map[string]grid.Box
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{boxes: make(map[string]grid.Box)}
}

func (m *MemoryStore) List(_ context.Context) ([]grid.Box, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]grid.Box, 0, len(m.boxes))
	for _, b := range m.boxes {
		out = append(out, cloneBox(b))
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) Upsert(_ context.Context, box grid.Box) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.boxes[box.ID]
	m.boxes[box.ID] = stamp(cloneBox(box), existing.CreatedAt)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boxes[id]; !ok {
		return false, nil
	}
	delete(m.boxes, id)
	return true, nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
