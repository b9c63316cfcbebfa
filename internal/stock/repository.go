package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads stock data from PostgreSQL. All mutation happens inside
// the transfer execution transaction, owned by the transfers module.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetItem fetches an item by id.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	var item Item
	err := r.pool.QueryRow(ctx, `SELECT id, sku, name, unit, is_composite, current_stock
FROM inventory_items WHERE id = $1`, id).
		Scan(&item.ID, &item.SKU, &item.Name, &item.Unit, &item.IsComposite, &item.CurrentStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// ResolveItem resolves an order line to an item: by direct link first,
// falling back to SKU lookup.
func (r *Repository) ResolveItem(ctx context.Context, itemID int64, sku string) (Item, error) {
	if itemID != 0 {
		return r.GetItem(ctx, itemID)
	}
	var item Item
	err := r.pool.QueryRow(ctx, `SELECT id, sku, name, unit, is_composite, current_stock
FROM inventory_items WHERE sku = $1`, sku).
		Scan(&item.ID, &item.SKU, &item.Name, &item.Unit, &item.IsComposite, &item.CurrentStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// Balance returns the item's stock in one warehouse. A missing row reads as zero.
func (r *Repository) Balance(ctx context.Context, warehouseID, itemID int64) (float64, error) {
	var qty float64
	err := r.pool.QueryRow(ctx, `SELECT current_stock FROM warehouse_stocks
WHERE warehouse_id = $1 AND item_id = $2`, warehouseID, itemID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}

// ListBalances returns all balances for an item across warehouses.
func (r *Repository) ListBalances(ctx context.Context, itemID int64) ([]Balance, error) {
	rows, err := r.pool.Query(ctx, `SELECT warehouse_id, item_id, current_stock, updated_at
FROM warehouse_stocks WHERE item_id = $1 ORDER BY warehouse_id`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var balances []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.WarehouseID, &b.ItemID, &b.CurrentStock, &b.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// CandidateSources lists active warehouses other than the excluded one that
// hold a positive balance of the item, largest balance first.
func (r *Repository) CandidateSources(ctx context.Context, itemID, excludeWarehouseID int64) ([]Balance, error) {
	rows, err := r.pool.Query(ctx, `SELECT ws.warehouse_id, ws.item_id, ws.current_stock, ws.updated_at
FROM warehouse_stocks ws
JOIN warehouses w ON w.id = ws.warehouse_id
WHERE ws.item_id = $1 AND ws.warehouse_id <> $2 AND ws.current_stock > 0 AND w.is_active
ORDER BY ws.current_stock DESC, ws.warehouse_id ASC`, itemID, excludeWarehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var candidates []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.WarehouseID, &b.ItemID, &b.CurrentStock, &b.UpdatedAt); err != nil {
			return nil, err
		}
		candidates = append(candidates, b)
	}
	return candidates, rows.Err()
}

// ListMovements reads the ledger, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, batch_id, item_id, movement_type, quantity, previous_stock, new_stock, warehouse_id, COALESCE(transfer_id, 0), actor_id, occurred_at
FROM stock_movements
WHERE ($1 = 0 OR item_id = $1)
  AND ($2 = 0 OR warehouse_id = $2)
  AND ($3 = 0 OR transfer_id = $3)
ORDER BY occurred_at DESC, id DESC
LIMIT $4`, filter.ItemID, filter.WarehouseID, filter.TransferID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		var mtype string
		if err := rows.Scan(&m.ID, &m.BatchID, &m.ItemID, &mtype, &m.Quantity, &m.PreviousStock, &m.NewStock, &m.WarehouseID, &m.TransferID, &m.ActorID, &m.OccurredAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(mtype)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
