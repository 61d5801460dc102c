// Package database opens the two physical stores and applies their schemas.
// The primary store (subjects, erasure requests) runs on pgx; the audit store
// runs on database/sql with lib/pq. Keeping the drivers distinct makes it
// structurally awkward to point both at the same database by accident, and
// the isolation router check in each store constructor makes it an error.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // audit store driver

	"custodia/internal/platform/config"
)

// OpenPrimary builds a pgx pool for the primary database and eagerly
// verifies connectivity.
func OpenPrimary(ctx context.Context, cfg config.PrimaryDB) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("primary database URL is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse primary db config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create primary db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping primary db: %w", err)
	}
	return pool, nil
}

// OpenAudit opens the dedicated audit database and eagerly verifies
// connectivity.
func OpenAudit(ctx context.Context, cfg config.AuditDB) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("audit database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit db: %w", err)
	}
	return db, nil
}
