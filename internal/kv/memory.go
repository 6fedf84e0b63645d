package kv

import (
	"context"
	"sync"
)

// Memory is a mutex-guarded map backend. It is the default backend and the
// fake used throughout the tests.
type Memory struct {
	mu    sync.Mutex
	slots map[string][]byte
	limit int // max bytes per slot, 0 = unlimited
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string][]byte)}
}

// NewMemoryWithLimit caps the stored size per slot, letting tests exercise
// the quota-exceeded path.
func NewMemoryWithLimit(limit int) *Memory {
	return &Memory{slots: make(map[string][]byte), limit: limit}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.slots[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit > 0 && len(value) > m.limit {
		return ErrStorageFull
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.slots[key] = stored
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, key)
	return nil
}

func (m *Memory) Close() error { return nil }
