package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// WithTx runs fn inside a RepeatableRead transaction. Balance arithmetic
// depends on rereads seeing a stable snapshot, so ReadCommitted is not
// enough here.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	// Rollback after a successful commit returns ErrTxClosed; safe to ignore.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return markTxConflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", markTxConflict(err))
	}
	return nil
}

// markTxConflict tags SQLSTATE 40001 so callers can map the concurrency
// loser to a retryable response instead of a generic failure.
func markTxConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return fmt.Errorf("%w: %s", shared.ErrTxConflict, pgErr.Message)
	}
	return err
}
