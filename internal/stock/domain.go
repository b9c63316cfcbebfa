package stock

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MovementType enumerates ledger entry kinds.
type MovementType string

const (
	// MovementTransfer marks entries written by warehouse transfer execution.
	MovementTransfer MovementType = "TRANSFER"
)

// Item is an inventory item. CurrentStock is a derived total and always
// equals the sum of the item's balances across all warehouses.
type Item struct {
	ID           int64   `json:"id"`
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	IsComposite  bool    `json:"is_composite"`
	CurrentStock float64 `json:"current_stock"`
}

// Balance holds the per-warehouse stock level of one item. Never negative.
type Balance struct {
	WarehouseID  int64     `json:"warehouse_id"`
	ItemID       int64     `json:"item_id"`
	CurrentStock float64   `json:"current_stock"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Movement is an append-only ledger entry. Rows are never updated or deleted.
// BatchID groups the entries written by one execution; it is derived from the
// transfer number, so re-running the same transfer can never mint a second
// batch.
type Movement struct {
	ID            int64        `json:"id"`
	BatchID       uuid.UUID    `json:"batch_id"`
	ItemID        int64        `json:"item_id"`
	Type          MovementType `json:"type"`
	Quantity      float64      `json:"quantity"`
	PreviousStock float64      `json:"previous_stock"`
	NewStock      float64      `json:"new_stock"`
	WarehouseID   int64        `json:"warehouse_id"`
	TransferID    int64        `json:"transfer_id,omitempty"`
	ActorID       int64        `json:"actor_id"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

// MovementFilter filters ledger reads.
type MovementFilter struct {
	ItemID      int64
	WarehouseID int64
	TransferID  int64
	Limit       int
}

// ErrItemNotFound indicates a missing inventory item.
var ErrItemNotFound = errors.New("stock: item not found")

// ErrBalanceNotFound indicates a missing balance row.
var ErrBalanceNotFound = errors.New("stock: balance not found")
