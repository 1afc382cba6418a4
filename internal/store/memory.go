package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ashita-ai/tenran/internal/model"
)

// Memory is an in-process Store for tests and ephemeral dev runs.
//
// States are kept JSON-encoded so readers always get an independent
// copy; a caller mutating a returned snapshot can never corrupt the
// stored record. This also keeps behavior identical to the durable
// backends, which round-trip through JSON anyway.
type Memory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID][]byte
	phases   map[uuid.UUID]model.Phase
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[uuid.UUID][]byte),
		phases:   make(map[uuid.UUID]model.Phase),
	}
}

// Create persists a new session.
func (m *Memory) Create(_ context.Context, state model.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: encode session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[state.ID]; ok {
		return ErrDuplicateID
	}
	m.sessions[state.ID] = raw
	m.phases[state.ID] = state.Phase
	return nil
}

// Get returns the last written state for id.
func (m *Memory) Get(_ context.Context, id uuid.UUID) (model.SessionState, error) {
	m.mu.RLock()
	raw, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return model.SessionState{}, ErrNotFound
	}

	var state model.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return model.SessionState{}, fmt.Errorf("store: decode session: %w", err)
	}
	return state, nil
}

// CompareAndSwap writes state only if the stored phase still equals expected.
func (m *Memory) CompareAndSwap(_ context.Context, id uuid.UUID, expected model.Phase, state model.SessionState) (bool, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return false, fmt.Errorf("store: encode session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.phases[id]
	if !ok {
		return false, ErrNotFound
	}
	if current != expected {
		return false, nil
	}
	m.sessions[id] = raw
	m.phases[id] = state.Phase
	return true, nil
}

// Kind returns "memory".
func (m *Memory) Kind() string { return "memory" }

// Close is a no-op.
func (m *Memory) Close(context.Context) error { return nil }
