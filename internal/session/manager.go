package session

import (
	"context"
	"sync"

	"onboard/internal/wizard"
)

// Manager serializes read-modify-write cycles per session on top of a Store.
// The wizard reducer is pure, so concurrency only matters at the storage
// boundary: two overlapping mutations of the same session must not interleave
// their load and save. Distinct sessions never contend.
type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a Manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, locks: make(map[string]*sessionLock)}
}

// Store exposes the underlying store for read-only access paths.
func (m *Manager) Store() Store {
	return m.store
}

// acquire locks the per-session mutex, creating it on first use.
func (m *Manager) acquire(id string) *sessionLock {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return l
}

// release unlocks and garbage-collects the per-session mutex.
func (m *Manager) release(id string, l *sessionLock) {
	l.mu.Unlock()

	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, id)
	}
	m.mu.Unlock()
}

// Mutate loads the session, applies fn, and stores the result, all under the
// per-session lock. fn receives a copy and returns the replacement state; an
// error from fn aborts without saving.
func (m *Manager) Mutate(ctx context.Context, id string, fn func(wizard.State) (wizard.State, error)) (wizard.State, error) {
	l := m.acquire(id)
	defer m.release(id, l)

	state, err := m.store.Get(ctx, id)
	if err != nil {
		return wizard.State{}, err
	}

	next, err := fn(state)
	if err != nil {
		return wizard.State{}, err
	}

	if err := m.store.Put(ctx, id, next); err != nil {
		return wizard.State{}, err
	}
	return next, nil
}

// Create stores a brand-new session state under the per-session lock.
func (m *Manager) Create(ctx context.Context, id string, state wizard.State) error {
	l := m.acquire(id)
	defer m.release(id, l)
	return m.store.Put(ctx, id, state)
}

// Get loads the session without locking; reads see the latest committed state.
func (m *Manager) Get(ctx context.Context, id string) (wizard.State, error) {
	return m.store.Get(ctx, id)
}
