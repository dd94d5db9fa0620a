package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/jmoiron/sqlx"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" sqlx driver

	"github.com/meridianfm/meridian/internal/observe"
)

// Store is the central PostgreSQL-backed store for Meridian. It holds a
// single [pgxpool.Pool] for the job queue, segment, asset, and knowledge
// tables, and a parallel [sqlx.DB] handle (sharing the pool's underlying
// connections is not possible across pgx/database-sql, so sqlx opens its own
// pool sized for the lighter catalog workload) for the ergonomic
// struct-scanning catalog queries in catalog.go.
type Store struct {
	pool    *pgxpool.Pool
	catalog *sqlx.DB
	metrics *observe.Metrics
}

// New establishes a connection pool to the PostgreSQL database at dsn,
// registers pgvector types on every connection, and runs [Migrate].
//
// embeddingDimensions must match the configured embeddings provider.
func New(ctx context.Context, dsn string, embeddingDimensions int, metrics *observe.Metrics) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	catalog, err := sqlx.Open("pgx", dsn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: open catalog handle: %w", err)
	}
	if err := catalog.PingContext(ctx); err != nil {
		pool.Close()
		catalog.Close()
		return nil, fmt.Errorf("store: ping catalog handle: %w", err)
	}

	return &Store{pool: pool, catalog: catalog, metrics: metrics}, nil
}

// Close releases all connections held by the store.
func (s *Store) Close() {
	s.pool.Close()
	s.catalog.Close()
}

// Ping verifies the store's database connection is reachable, used by the
// readiness health check (§8).
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
