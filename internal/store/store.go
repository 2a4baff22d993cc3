// Package store is the session ledger: one durable record per discovery
// target, looked up by identity key and rewritten whole after every
// successful iteration.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sells-group/ivrmap/internal/model"
)

// SessionSummary is the listing row for a stored session.
type SessionSummary struct {
	Key       string    `json:"key"`
	Identity  string    `json:"identity"`
	CallCount int       `json:"call_count"`
	TotalCost float64   `json:"total_cost"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines persistence for discovery sessions. Each write replaces
// the whole session record atomically; LoadSession returns (nil, nil)
// when no session exists for the key.
type Store interface {
	LoadSession(ctx context.Context, key string) (*model.Session, error)
	SaveSession(ctx context.Context, session *model.Session) error
	ListSessions(ctx context.Context) ([]SessionSummary, error)
	DeleteSession(ctx context.Context, key string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the subset of pgxpool.Pool the postgres store uses; pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}
