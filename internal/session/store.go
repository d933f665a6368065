// Package session provides the storage port for wizard sessions. The core
// state machine is storage-agnostic: it sees only the Store interface, so the
// same logic runs against the in-memory fake in tests, Redis in production,
// or Postgres where durability across restarts matters.
package session

import (
	"context"
	"errors"

	"onboard/internal/wizard"
)

// Namespace is the fixed key prefix every implementation stores sessions
// under. Changing it orphans all existing sessions.
const Namespace = "onboarding"

// ErrNotFound is returned when no session exists for the given ID.
var ErrNotFound = errors.New("session: not found")

// Store persists wizard state keyed by opaque session ID.
type Store interface {
	// Get returns the stored state, or ErrNotFound.
	Get(ctx context.Context, id string) (wizard.State, error)

	// Put stores the state, overwriting any previous value.
	Put(ctx context.Context, id string, state wizard.State) error

	// Delete removes the session. Deleting a missing session is a no-op.
	Delete(ctx context.Context, id string) error
}

// key builds the namespaced storage key for a session ID.
func key(id string) string {
	return Namespace + ":" + id
}
