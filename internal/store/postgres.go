package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ivrmap/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// preparedStatements lists queries to prepare on each new connection. The
// session upsert runs once per call iteration, the load once per run.
var preparedStatements = map[string]string{
	"load_session":   `SELECT data FROM sessions WHERE key = $1`,
	"upsert_session": `INSERT INTO sessions (id, key, identity, data, call_count, total_cost, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (key) DO UPDATE SET data = $4, call_count = $5, total_cost = $6, updated_at = $8`,
	"list_sessions":  `SELECT key, identity, call_count, total_cost, updated_at FROM sessions ORDER BY updated_at DESC`,
	"delete_session": `DELETE FROM sessions WHERE key = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 5
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; tests inject pgxmock here.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT NOT NULL,
	key        TEXT PRIMARY KEY,
	identity   TEXT NOT NULL,
	data       JSONB NOT NULL,
	call_count INTEGER NOT NULL DEFAULT 0,
	total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) LoadSession(ctx context.Context, key string) (*model.Session, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM sessions WHERE key = $1`, key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: load session %s", key)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal session %s", key)
	}
	return &session, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, session *model.Session) error {
	if session == nil || session.Identity == "" {
		return eris.Wrap(model.ErrValidation, "postgres: session identity required")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal session")
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, key, identity, data, call_count, total_cost, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (key) DO UPDATE SET
		   data = $4, call_count = $5, total_cost = $6, updated_at = $8`,
		uuid.New().String(), session.Key(), session.Identity, data,
		len(session.Calls), session.TotalCost, now, now,
	)
	return eris.Wrapf(err, "postgres: save session %s", session.Key())
}

func (s *PostgresStore) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, identity, call_count, total_cost, updated_at
		 FROM sessions ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.Key, &sum.Identity, &sum.CallCount, &sum.TotalCost, &sum.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session summary")
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) DeleteSession(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE key = $1`, key)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete session %s", key)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("session not found: %s", key)
	}
	return nil
}
