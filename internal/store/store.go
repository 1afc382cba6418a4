// Package store provides keyed persistence for session state.
//
// The contract is deliberately narrow: create, read, and a
// compare-and-swap conditioned on the session's current phase. The
// CAS is what makes duplicate or late selection calls safe: a
// transition only lands if the session is still in the phase the
// writer observed. Three backends implement it: Postgres (pgx) for
// production, SQLite for single-node durable deployments, and an
// in-memory map for tests and ephemeral dev runs.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ashita-ai/tenran/internal/model"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("store: session not found")

// ErrDuplicateID is returned when creating a session whose id already exists.
var ErrDuplicateID = errors.New("store: session id already exists")

// Store is the session persistence contract.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create persists a new session. The id must be unused.
	Create(ctx context.Context, state model.SessionState) error

	// Get returns the last written state for id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (model.SessionState, error)

	// CompareAndSwap writes state only if the stored phase still equals
	// expected. Returns false (and no error) when the condition fails,
	// which callers surface as a precondition violation.
	CompareAndSwap(ctx context.Context, id uuid.UUID, expected model.Phase, state model.SessionState) (bool, error)

	// Kind names the backend ("postgres", "sqlite", "memory") for
	// logging and health reporting.
	Kind() string

	// Close releases backend resources.
	Close(ctx context.Context) error
}
