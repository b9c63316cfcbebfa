package transfers

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status enumerates the warehouse transfer lifecycle.
type Status string

const (
	// StatusDraft marks a proposed or manually created transfer.
	StatusDraft Status = "DRAFT"
	// StatusPending marks an approved transfer awaiting execution.
	StatusPending Status = "PENDING"
	// StatusCompleted marks an executed transfer. Terminal.
	StatusCompleted Status = "COMPLETED"
	// StatusCancelled marks a transfer cancelled before execution. Terminal.
	StatusCancelled Status = "CANCELLED"
)

// Transfer is the transfer aggregate header.
type Transfer struct {
	ID              int64     `json:"id"`
	Number          string    `json:"number"`
	FromWarehouseID int64     `json:"from_warehouse_id"`
	ToWarehouseID   int64     `json:"to_warehouse_id"`
	Status          Status    `json:"status"`
	IsAutoProposed  bool      `json:"is_auto_proposed"`
	Note            string    `json:"note,omitempty"`
	CreatedBy       int64     `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	ApprovedBy      int64     `json:"approved_by,omitempty"`
	ApprovedAt      time.Time `json:"approved_at,omitzero"`
	ExecutedBy      int64     `json:"executed_by,omitempty"`
	ExecutedAt      time.Time `json:"executed_at,omitzero"`
	CancelledBy     int64     `json:"cancelled_by,omitempty"`
	CancelledAt     time.Time `json:"cancelled_at,omitzero"`
}

// TransferItem is one line of a transfer. The before/after snapshots are
// written exactly once, at execution time, and are immutable afterwards.
// They duplicate the ledger on purpose: per-transfer reporting reads them
// without scanning stock_movements.
type TransferItem struct {
	ID              int64   `json:"id"`
	TransferID      int64   `json:"transfer_id"`
	ItemID          int64   `json:"item_id"`
	SKU             string  `json:"sku"`
	Quantity        float64 `json:"quantity"`
	FromStockBefore float64 `json:"from_stock_before"`
	FromStockAfter  float64 `json:"from_stock_after"`
	ToStockBefore   float64 `json:"to_stock_before"`
	ToStockAfter    float64 `json:"to_stock_after"`
	HasSnapshot     bool    `json:"has_snapshot"`
}

// ListFilter filters transfer listings.
type ListFilter struct {
	Status Status
	Limit  int
}

// Violation reasons reported by execution preconditions.
const (
	ReasonInsufficientStock = "INSUFFICIENT_STOCK"
	ReasonCompositeItem     = "COMPOSITE_ITEM"
	ReasonWarehouseInactive = "WAREHOUSE_INACTIVE"
)

// Violation describes one execution precondition failure. ItemID is zero for
// transfer-level violations such as an inactive warehouse.
type Violation struct {
	Reason      string  `json:"reason"`
	ItemID      int64   `json:"item_id,omitempty"`
	SKU         string  `json:"sku,omitempty"`
	WarehouseID int64   `json:"warehouse_id,omitempty"`
	Required    float64 `json:"required,omitempty"`
	Available   float64 `json:"available,omitempty"`
}

// ExecutionError aggregates every precondition violation found before any
// stock mutation. Execution never partially applies.
type ExecutionError struct {
	Violations []Violation
}

func (e *ExecutionError) Error() string {
	reasons := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.ItemID != 0 {
			reasons = append(reasons, fmt.Sprintf("%s item=%d", v.Reason, v.ItemID))
			continue
		}
		reasons = append(reasons, v.Reason)
	}
	return "transfers: execution blocked: " + strings.Join(reasons, ", ")
}

var (
	// ErrInvalidState indicates a transition not allowed by the lifecycle.
	ErrInvalidState = errors.New("transfers: invalid transfer state")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("transfers: validation failed")
	// ErrNoShortfall is returned by the proposal engine when the operational
	// warehouse already covers the order.
	ErrNoShortfall = errors.New("transfers: order has all stock")
	// ErrAlreadyProposed indicates the order already references a transfer.
	ErrAlreadyProposed = errors.New("transfers: order already has a required transfer")
	// ErrNoCandidates indicates no other warehouse holds any of the missing items.
	ErrNoCandidates = errors.New("transfers: no source warehouse can cover the shortfall")
)

// CanApprove reports whether the transfer accepts the approve transition.
func (t Transfer) CanApprove() bool { return t.Status == StatusDraft }

// CanCancel reports whether the transfer accepts the cancel transition.
// Only pre-execution states cancel; no stock has moved yet.
func (t Transfer) CanCancel() bool {
	return t.Status == StatusDraft || t.Status == StatusPending
}

// CanExecute reports whether the transfer accepts the execute transition.
// Approval is a hard precondition: DRAFT transfers never execute.
func (t Transfer) CanExecute() bool { return t.Status == StatusPending }
