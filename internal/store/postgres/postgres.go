// Package postgres implements the document store on PostgreSQL through pgx.
//
// Each entity is one JSONB document row with the revision extracted into a
// column; compare-and-swap updates are plain
// `UPDATE ... WHERE id = $1 AND revision = $2` statements whose affected-row
// count distinguishes a clean commit from a lost race.
//
// Import Path: github.com/yajasvikhanna/Flytbase/internal/store/postgres
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yajasvikhanna/Flytbase/internal/config"
	"github.com/yajasvikhanna/Flytbase/internal/store"
)

// Store is the PostgreSQL-backed document store.
type Store struct {
	pool *pgxpool.Pool
}

// New connects a pool using the store configuration and optionally runs
// migrations.
func New(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse store dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	s := &Store{pool: pool}
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate store: %w", err)
		}
	}
	return s, nil
}

// NewWithPool wraps an existing pool (used by tests).
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Stores returns the store bundled behind the interface handle.
func (s *Store) Stores() store.Stores {
	return store.Stores{
		Missions:    s,
		Drones:      s,
		Reports:     s,
		Transitions: s,
	}
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS missions (
	id              TEXT PRIMARY KEY,
	organization_id TEXT        NOT NULL,
	status          TEXT        NOT NULL,
	revision        BIGINT      NOT NULL DEFAULT 1,
	doc             JSONB       NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS missions_org_idx ON missions (organization_id, created_at DESC);

CREATE TABLE IF NOT EXISTS drones (
	id              TEXT PRIMARY KEY,
	organization_id TEXT        NOT NULL,
	serial_number   TEXT        NOT NULL UNIQUE,
	revision        BIGINT      NOT NULL DEFAULT 1,
	doc             JSONB       NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS drones_org_idx ON drones (organization_id, created_at DESC);

CREATE TABLE IF NOT EXISTS reports (
	id              TEXT PRIMARY KEY,
	mission_id      TEXT        NOT NULL UNIQUE,
	organization_id TEXT        NOT NULL,
	doc             JSONB       NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS reports_org_idx ON reports (organization_id, created_at DESC);
`

// Migrate creates the document tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// mapError translates pgx errors into store sentinels.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrDuplicate
	}
	return err
}
