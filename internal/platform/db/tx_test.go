package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func TestMarkTxConflictTagsSerializationFailure(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}

	err := markTxConflict(pgErr)
	require.ErrorIs(t, err, shared.ErrTxConflict)

	wrapped := markTxConflict(fmt.Errorf("exec movement: %w", pgErr))
	require.ErrorIs(t, wrapped, shared.ErrTxConflict)
}

func TestMarkTxConflictPassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	require.Same(t, plain, markTxConflict(plain))

	unique := &pgconn.PgError{Code: "23505"}
	require.Same(t, error(unique), markTxConflict(unique))

	require.NoError(t, markTxConflict(nil))
}
