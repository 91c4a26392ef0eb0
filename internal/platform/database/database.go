// Package database opens the PostgreSQL pool behind the analytics event
// sink. The service runs without it; an empty URL means no pool is opened.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/mindshift/internal/platform/config"
)

const (
	connLifetime = 30 * time.Minute
	connIdleTime = 5 * time.Minute
	pingTimeout  = 5 * time.Second
)

// DB is the event sink's connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// ParseURL validates MINDSHIFT_DATABASE_URL.
func ParseURL(url string) (*pgxpool.Config, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	return cfg, nil
}

// New opens the pool and pings it. Event writes are small and bursty, so
// unset pool sizes keep pgx's defaults.
func New(ctx context.Context, dbCfg config.DatabaseConfig) (*DB, error) {
	cfg, err := ParseURL(dbCfg.URL)
	if err != nil {
		return nil, err
	}
	if dbCfg.MaxConns > 0 {
		cfg.MaxConns = int32(dbCfg.MaxConns)
	}
	if dbCfg.MinConns > 0 {
		cfg.MinConns = int32(dbCfg.MinConns)
	}
	cfg.MaxConnLifetime = connLifetime
	cfg.MaxConnIdleTime = connIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening event database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging event database at %s: %w", cfg.ConnConfig.Host, err)
	}
	return &DB{Pool: pool}, nil
}

// Host names the database server without credentials.
func (db *DB) Host() string {
	return db.Pool.Config().ConnConfig.Host
}

func (db *DB) Close() {
	db.Pool.Close()
}

// HealthCheck backs the "database" readiness check.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
