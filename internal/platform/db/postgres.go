package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a new PostgreSQL connection pool. When lockTimeout is
// positive it is applied as the session lock_timeout, bounding how long a
// checkout can queue behind another transaction's row locks.
func New(ctx context.Context, dsn string, lockTimeout time.Duration) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}
	if lockTimeout > 0 {
		config.ConnConfig.RuntimeParams["lock_timeout"] = fmt.Sprintf("%d", lockTimeout.Milliseconds())
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("platform/db: new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}

	return pool, nil
}
