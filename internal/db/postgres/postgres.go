// Package postgres manages the PostgreSQL connection pool.
// pgxpool is safe for use from many goroutines: it opens and closes
// connections on demand, reconnects after drops and caps the total number.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"lexdesk.app/credits/internal/config"
)

// NewPool creates a connection pool and checks that the database answers.
//
// Parameters:
//   - ctx: cancels the dial
//   - cfg: connection settings and pool bounds
//
// Example:
//
//	pool, err := postgres.NewPool(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MinConns = cfg.DBMinConns // kept open
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	log.WithFields(log.Fields{
		"host":      cfg.DBHost,
		"database":  cfg.DBName,
		"max_conns": cfg.DBMaxConns,
	}).Info("Connected to PostgreSQL")
	return pool, nil
}
