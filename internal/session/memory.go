package session

import (
	"context"
	"sync"

	"onboard/internal/wizard"
)

// MemoryStore is a process-local Store. It backs local development and tests;
// state does not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]wizard.State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]wizard.State)}
}

// Get returns the stored state, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (wizard.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[key(id)]
	if !ok {
		return wizard.State{}, ErrNotFound
	}
	return state, nil
}

// Put stores the state.
func (s *MemoryStore) Put(ctx context.Context, id string, state wizard.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key(id)] = state
	return nil
}

// Delete removes the session.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key(id))
	return nil
}
