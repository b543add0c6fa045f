package session

import (
	"context"
	"sync"
)

// MemoryStore keeps states in process memory. States are lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]State)}
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[chatID]
	return s, ok, nil
}

func (m *MemoryStore) Update(_ context.Context, chatID int64, s State) error {
	m.mu.Lock()
	m.states[chatID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, chatID int64) error {
	m.mu.Lock()
	delete(m.states, chatID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
