package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository reads orders and applies the unblock transition.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches an order with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Order, []Line, error) {
	var o Order
	err := r.pool.QueryRow(ctx, `SELECT id, number, status, COALESCE(required_transfer_id, 0), created_at
FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.Number, &o.Status, &o.RequiredTransferID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, shared.ErrNotFound
		}
		return Order{}, nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, COALESCE(item_id, 0), sku, quantity
FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.SKU, &l.Quantity); err != nil {
			return Order{}, nil, err
		}
		lines = append(lines, l)
	}
	return o, lines, rows.Err()
}

// ReleaseBlocked resets orders blocked on the transfer back to PENDING. The
// status predicate makes the update a no-op for orders an operator already
// moved elsewhere (for example cancelled while the transfer was in flight).
func (r *Repository) ReleaseBlocked(ctx context.Context, transferID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE orders SET status = $1, updated_at = NOW()
WHERE required_transfer_id = $2 AND status = $3`,
		string(StatusPending), transferID, string(StatusWaitTransfer))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
