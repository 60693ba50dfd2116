package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgresPool creates a pgx connection pool from the given config and
// verifies it with a ping.
func NewPostgresPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	return NewPostgresPoolFromDSN(ctx, cfg.DSN(), cfg.DBMaxConns, cfg.DBMinConns)
}

// NewPostgresPoolFromDSN is NewPostgresPool for callers without a Config,
// such as integration tests.
func NewPostgresPoolFromDSN(ctx context.Context, dsn string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	if minConns > 0 && minConns <= poolCfg.MaxConns {
		poolCfg.MinConns = minConns
	}
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Pinger is satisfied by *pgxpool.Pool and *redis.Client adapters.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck pings a dependency with a short timeout.
func HealthCheck(ctx context.Context, p Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return p.Ping(ctx)
}
