package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/ashita-ai/tenran/internal/model"
)

// SQLite is a durable single-node Store. Sessions survive process
// restarts, which is what lets a paused session outlive a crash,
// without requiring a Postgres instance.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path and
// ensures the sessions table exists. A single connection is used:
// sqlite serializes writers anyway and this avoids SQLITE_BUSY churn.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			phase TEXT NOT NULL,
			progress_percent INTEGER NOT NULL,
			state TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create sessions table: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Create persists a new session row.
func (s *SQLite) Create(ctx context.Context, state model.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: encode session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, phase, progress_percent, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		state.ID.String(), string(state.Phase), state.ProgressPercent, string(raw),
		state.CreatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z"),
		state.UpdatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z"),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateID
		}
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// Get returns the last written state for id.
func (s *SQLite) Get(ctx context.Context, id uuid.UUID) (model.SessionState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM sessions WHERE id = ?`, id.String(),
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SessionState{}, ErrNotFound
		}
		return model.SessionState{}, fmt.Errorf("store: get session: %w", err)
	}

	var state model.SessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return model.SessionState{}, fmt.Errorf("store: decode session: %w", err)
	}
	return state, nil
}

// CompareAndSwap writes state only if the stored phase still equals expected.
func (s *SQLite) CompareAndSwap(ctx context.Context, id uuid.UUID, expected model.Phase, state model.SessionState) (bool, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return false, fmt.Errorf("store: encode session: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET phase = ?, progress_percent = ?, state = ?, updated_at = ?
		 WHERE id = ? AND phase = ?`,
		string(state.Phase), state.ProgressPercent, string(raw),
		state.UpdatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z"),
		id.String(), string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("store: cas session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: cas rows affected: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = ?)`, id.String(),
		).Scan(&exists); err != nil {
			return false, fmt.Errorf("store: cas existence check: %w", err)
		}
		if !exists {
			return false, ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

// Kind returns "sqlite".
func (s *SQLite) Kind() string { return "sqlite" }

// Close closes the database.
func (s *SQLite) Close(context.Context) error { return s.db.Close() }
