package transfers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/orders"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
)

// Repository implements RepositoryPort on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const transferColumns = `id, number, from_warehouse_id, to_warehouse_id, status, is_auto_proposed,
COALESCE(note, ''), COALESCE(created_by, 0), created_at,
COALESCE(approved_by, 0), COALESCE(approved_at, 'epoch'::timestamptz),
COALESCE(executed_by, 0), COALESCE(executed_at, 'epoch'::timestamptz),
COALESCE(cancelled_by, 0), COALESCE(cancelled_at, 'epoch'::timestamptz)`

func scanTransfer(row pgx.Row) (Transfer, error) {
	var t Transfer
	err := row.Scan(&t.ID, &t.Number, &t.FromWarehouseID, &t.ToWarehouseID, &t.Status,
		&t.IsAutoProposed, &t.Note, &t.CreatedBy, &t.CreatedAt,
		&t.ApprovedBy, &t.ApprovedAt,
		&t.ExecutedBy, &t.ExecutedAt,
		&t.CancelledBy, &t.CancelledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, shared.ErrNotFound
		}
		return Transfer{}, err
	}
	normalizeTimes(&t)
	return t, nil
}

// normalizeTimes maps the epoch sentinel used for NULL timestamps back to the
// zero time so omitzero keeps them out of responses.
func normalizeTimes(t *Transfer) {
	epoch := time.Unix(0, 0).UTC()
	for _, ts := range []*time.Time{&t.ApprovedAt, &t.ExecutedAt, &t.CancelledAt} {
		if ts.Equal(epoch) {
			*ts = time.Time{}
		}
	}
}

// GetTransfer fetches a transfer with its items.
func (r *Repository) GetTransfer(ctx context.Context, id int64) (Transfer, []TransferItem, error) {
	t, err := scanTransfer(r.pool.QueryRow(ctx,
		`SELECT `+transferColumns+` FROM warehouse_transfers WHERE id = $1`, id))
	if err != nil {
		return Transfer{}, nil, err
	}
	items, err := queryTransferItems(ctx, r.pool, id)
	if err != nil {
		return Transfer{}, nil, err
	}
	return t, items, nil
}

// ListTransfers lists transfers, newest first.
func (r *Repository) ListTransfers(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + transferColumns + ` FROM warehouse_transfers`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY id DESC LIMIT ` + strconv.Itoa(limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListOrphanedProposals finds aged auto-proposed drafts no order references.
func (r *Repository) ListOrphanedProposals(ctx context.Context, olderThan time.Time) ([]Transfer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transferColumns+`
FROM warehouse_transfers t
WHERE t.status = $1 AND t.is_auto_proposed
  AND t.created_at < $2
  AND NOT EXISTS (SELECT 1 FROM orders o WHERE o.required_transfer_id = t.id AND o.status = $3)
ORDER BY t.id`, string(StatusDraft), olderThan, string(orders.StatusWaitTransfer))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryTransferItems(ctx context.Context, q querier, transferID int64) ([]TransferItem, error) {
	rows, err := q.Query(ctx, `SELECT id, transfer_id, item_id, sku, quantity,
COALESCE(from_stock_before, 0), COALESCE(from_stock_after, 0),
COALESCE(to_stock_before, 0), COALESCE(to_stock_after, 0),
from_stock_before IS NOT NULL
FROM warehouse_transfer_items WHERE transfer_id = $1 ORDER BY id`, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TransferItem
	for rows.Next() {
		var item TransferItem
		if err := rows.Scan(&item.ID, &item.TransferID, &item.ItemID, &item.SKU, &item.Quantity,
			&item.FromStockBefore, &item.FromStockAfter,
			&item.ToStockBefore, &item.ToStockAfter,
			&item.HasSnapshot); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// NextTransferNumber bumps the per-day counter and returns the new sequence.
// The upsert serializes concurrent creators on the counter row, so numbers
// never collide.
func (r *txRepository) NextTransferNumber(ctx context.Context, day time.Time) (int, error) {
	var seq int
	err := r.tx.QueryRow(ctx, `INSERT INTO transfer_counters (day, last_seq)
VALUES ($1, 1)
ON CONFLICT (day) DO UPDATE SET last_seq = transfer_counters.last_seq + 1
RETURNING last_seq`, day.Format("2006-01-02")).Scan(&seq)
	return seq, err
}

func (r *txRepository) CreateTransfer(ctx context.Context, t Transfer) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO warehouse_transfers
(number, from_warehouse_id, to_warehouse_id, status, is_auto_proposed, note, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, 0), $8)
RETURNING id`,
		t.Number, t.FromWarehouseID, t.ToWarehouseID, string(t.Status),
		t.IsAutoProposed, t.Note, t.CreatedBy, t.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertTransferItem(ctx context.Context, item TransferItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO warehouse_transfer_items
(transfer_id, item_id, sku, quantity)
VALUES ($1, $2, $3, $4)
RETURNING id`,
		item.TransferID, item.ItemID, item.SKU, item.Quantity).Scan(&id)
	return id, err
}

func (r *txRepository) GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error) {
	return scanTransfer(r.tx.QueryRow(ctx,
		`SELECT `+transferColumns+` FROM warehouse_transfers WHERE id = $1 FOR UPDATE`, id))
}

func (r *txRepository) TransferItems(ctx context.Context, transferID int64) ([]TransferItem, error) {
	return queryTransferItems(ctx, r.tx, transferID)
}

func (r *txRepository) SetApproved(ctx context.Context, id, actorID int64, at time.Time) error {
	return r.setStatus(ctx, id, StatusPending, "approved_by", "approved_at", actorID, at)
}

func (r *txRepository) SetCancelled(ctx context.Context, id, actorID int64, at time.Time) error {
	return r.setStatus(ctx, id, StatusCancelled, "cancelled_by", "cancelled_at", actorID, at)
}

func (r *txRepository) SetCompleted(ctx context.Context, id, actorID int64, at time.Time) error {
	return r.setStatus(ctx, id, StatusCompleted, "executed_by", "executed_at", actorID, at)
}

func (r *txRepository) setStatus(ctx context.Context, id int64, status Status, byColumn, atColumn string, actorID int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE warehouse_transfers
SET status = $1, `+byColumn+` = NULLIF($2, 0), `+atColumn+` = $3, updated_at = NOW()
WHERE id = $4`,
		string(status), actorID, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) MarkOrderWaiting(ctx context.Context, orderID, transferID int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE orders
SET status = $1, required_transfer_id = $2, updated_at = NOW()
WHERE id = $3 AND required_transfer_id IS NULL`,
		string(orders.StatusWaitTransfer), transferID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyProposed
	}
	return nil
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, warehouseID, itemID int64) (stock.Balance, error) {
	var b stock.Balance
	err := r.tx.QueryRow(ctx, `SELECT warehouse_id, item_id, current_stock, updated_at
FROM warehouse_stocks WHERE warehouse_id = $1 AND item_id = $2 FOR UPDATE`,
		warehouseID, itemID).
		Scan(&b.WarehouseID, &b.ItemID, &b.CurrentStock, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stock.Balance{}, stock.ErrBalanceNotFound
		}
		return stock.Balance{}, err
	}
	return b, nil
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance stock.Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO warehouse_stocks (warehouse_id, item_id, current_stock, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (warehouse_id, item_id) DO UPDATE SET current_stock = EXCLUDED.current_stock, updated_at = NOW()`,
		balance.WarehouseID, balance.ItemID, balance.CurrentStock)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m stock.Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements
(batch_id, item_id, movement_type, quantity, previous_stock, new_stock, warehouse_id, transfer_id, actor_id, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, 0), NULLIF($9, 0), $10)`,
		m.BatchID, m.ItemID, string(m.Type), m.Quantity, m.PreviousStock, m.NewStock,
		m.WarehouseID, m.TransferID, m.ActorID, m.OccurredAt)
	return err
}

func (r *txRepository) SetItemSnapshot(ctx context.Context, transferItemID int64, fromBefore, fromAfter, toBefore, toAfter float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE warehouse_transfer_items
SET from_stock_before = $1, from_stock_after = $2, to_stock_before = $3, to_stock_after = $4
WHERE id = $5 AND from_stock_before IS NULL`,
		fromBefore, fromAfter, toBefore, toAfter, transferItemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidState
	}
	return nil
}

// RecomputeItemStock rewrites the item's derived total from its balances.
func (r *txRepository) RecomputeItemStock(ctx context.Context, itemID int64) (float64, error) {
	var total float64
	err := r.tx.QueryRow(ctx, `UPDATE inventory_items
SET current_stock = (SELECT COALESCE(SUM(current_stock), 0) FROM warehouse_stocks WHERE item_id = $1),
    updated_at = NOW()
WHERE id = $1
RETURNING current_stock`, itemID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, stock.ErrItemNotFound
		}
		return 0, err
	}
	return total, nil
}
