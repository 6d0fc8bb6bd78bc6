// Package postgres: tx.go runs a unit of work inside one database transaction.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lexdesk.app/credits/internal/common"
)

// UniqueViolation is the SQLSTATE of a unique constraint failure.
const UniqueViolation = "23505"

// WithTx begins a transaction, runs fn and commits when fn returns nil.
// Any error from fn rolls the transaction back and is returned as is, so
// taxonomy errors raised inside fn reach the caller unchanged. Begin and
// commit failures are store faults.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return common.StoreError("begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return common.StoreError("commit", err)
	}
	return nil
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == UniqueViolation
}

// ViolatedConstraint returns the constraint or index name of a unique
// violation, or "" for any other error.
func ViolatedConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == UniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}
