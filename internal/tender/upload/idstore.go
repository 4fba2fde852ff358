package upload

import (
	"context"
	"sync"
)

// IDStore holds the applicationId for one wizard session. SetIfAbsent is
// first-writer-wins and returns whichever id ends up stored.
type IDStore interface {
	Get(ctx context.Context) (string, error)
	SetIfAbsent(ctx context.Context, id string) (string, error)
}

// MemoryIDStore is the session-local default.
type MemoryIDStore struct {
	mu sync.Mutex
	id string
}

func NewMemoryIDStore(initial string) *MemoryIDStore {
	return &MemoryIDStore{id: initial}
}

func (m *MemoryIDStore) Get(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, nil
}

func (m *MemoryIDStore) SetIfAbsent(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.id == "" {
		m.id = id
	}
	return m.id, nil
}
