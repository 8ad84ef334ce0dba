package tasks

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps task states in process memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{states: make(map[string]State)}
}

func (m *MemoryBackend) Save(_ context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.states[s.ID]; ok && cur.Status.Terminal() {
		return ErrTerminalState
	}
	m.states[s.ID] = *s
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, id string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return &s, nil
}

func (m *MemoryBackend) Purge(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.states {
		if s.Status.Terminal() && s.UpdatedAt.Before(before) {
			delete(m.states, id)
			n++
		}
	}
	return n, nil
}
