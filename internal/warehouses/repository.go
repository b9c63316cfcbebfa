package warehouses

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository reads warehouse master data. The transfer engine never mutates
// warehouses; they are managed by the master-data boundary.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches a warehouse by id.
func (r *Repository) Get(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, is_active, is_operational, created_at, updated_at
FROM warehouses WHERE id = $1`, id).
		Scan(&w.ID, &w.Code, &w.Name, &w.IsActive, &w.IsOperational, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, shared.ErrNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

// Operational resolves the current fulfillment warehouse. The flag is read
// per operation rather than cached so reconfiguration takes effect without a
// restart.
func (r *Repository) Operational(ctx context.Context) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, is_active, is_operational, created_at, updated_at
FROM warehouses WHERE is_operational AND is_active
ORDER BY id LIMIT 1`).
		Scan(&w.ID, &w.Code, &w.Name, &w.IsActive, &w.IsOperational, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrNoOperationalWarehouse
		}
		return Warehouse{}, err
	}
	return w, nil
}

// ListActive returns all active warehouses ordered by code.
func (r *Repository) ListActive(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, is_active, is_operational, created_at, updated_at
FROM warehouses WHERE is_active ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &w.IsActive, &w.IsOperational, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}
