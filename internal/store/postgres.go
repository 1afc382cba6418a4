package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashita-ai/tenran/internal/model"
)

// Postgres is the production Store, backed by a pgxpool for queries
// and an optional dedicated connection for LISTEN/NOTIFY (the progress
// broker's cross-replica fan-out path).
type Postgres struct {
	pool       *pgxpool.Pool
	notifyConn *pgx.Conn
	logger     *slog.Logger
}

// NewPostgres connects a pool to poolDSN and, when notifyDSN is
// non-empty, a dedicated connection for LISTEN/NOTIFY. notifyDSN must
// point directly at Postgres (not a transaction-pooling proxy).
func NewPostgres(ctx context.Context, poolDSN, notifyDSN string, logger *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, poolDSN)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping pool: %w", err)
	}

	var notifyConn *pgx.Conn
	if notifyDSN != "" {
		notifyConn, err = pgx.Connect(ctx, notifyDSN)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("store: connect notify: %w", err)
		}
	}

	return &Postgres{pool: pool, notifyConn: notifyConn, logger: logger}, nil
}

// Pool returns the underlying connection pool for migrations and tests.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

// HasNotifyConn reports whether a LISTEN/NOTIFY connection is configured.
func (p *Postgres) HasNotifyConn() bool { return p.notifyConn != nil }

// Create persists a new session row.
func (p *Postgres) Create(ctx context.Context, state model.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: encode session: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO sessions (id, phase, progress_percent, state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		state.ID, string(state.Phase), state.ProgressPercent, raw, state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return ErrDuplicateID
		}
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// Get returns the last written state for id.
func (p *Postgres) Get(ctx context.Context, id uuid.UUID) (model.SessionState, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT state FROM sessions WHERE id = $1`, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SessionState{}, ErrNotFound
		}
		return model.SessionState{}, fmt.Errorf("store: get session: %w", err)
	}

	var state model.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return model.SessionState{}, fmt.Errorf("store: decode session: %w", err)
	}
	return state, nil
}

// CompareAndSwap writes state only if the stored phase still equals
// expected. The phase condition in the UPDATE is the entire concurrency
// story: a duplicate or late selection call loses the row-count check,
// no explicit locking required.
func (p *Postgres) CompareAndSwap(ctx context.Context, id uuid.UUID, expected model.Phase, state model.SessionState) (bool, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return false, fmt.Errorf("store: encode session: %w", err)
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE sessions SET phase = $1, progress_percent = $2, state = $3, updated_at = $4
		 WHERE id = $5 AND phase = $6`,
		string(state.Phase), state.ProgressPercent, raw, state.UpdatedAt, id, string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("store: cas session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish "phase moved on" from "no such session".
		var exists bool
		if err := p.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id,
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

// Kind returns "postgres".
func (p *Postgres) Kind() string { return "postgres" }

// Close shuts down the pool and the notify connection.
func (p *Postgres) Close(ctx context.Context) error {
	p.pool.Close()
	if p.notifyConn != nil {
		if err := p.notifyConn.Close(ctx); err != nil {
			p.logger.Warn("store: close notify connection", "error", err)
		}
	}
	return nil
}

// Listen starts listening on channel using the dedicated notify connection.
func (p *Postgres) Listen(ctx context.Context, channel string) error {
	if p.notifyConn == nil {
		return fmt.Errorf("store: notify connection not configured")
	}
	if _, err := p.notifyConn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("store: listen %s: %w", channel, err)
	}
	return nil
}

// WaitForNotification blocks until a notification arrives on any
// listened channel, returning its payload.
func (p *Postgres) WaitForNotification(ctx context.Context) (string, error) {
	if p.notifyConn == nil {
		return "", fmt.Errorf("store: notify connection not configured")
	}
	n, err := p.notifyConn.WaitForNotification(ctx)
	if err != nil {
		return "", fmt.Errorf("store: wait for notification: %w", err)
	}
	return n.Payload, nil
}

// Notify publishes payload on channel via the query pool.
func (p *Postgres) Notify(ctx context.Context, channel, payload string) error {
	if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, payload); err != nil {
		return fmt.Errorf("store: notify %s: %w", channel, err)
	}
	return nil
}
