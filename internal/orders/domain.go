package orders

import "time"

// Status enumerates the order states this module interacts with. Other
// states exist in the fulfillment pipeline but are opaque here.
type Status string

const (
	// StatusPending marks an order awaiting normal fulfillment.
	StatusPending Status = "PENDING"
	// StatusWaitTransfer marks an order blocked on a warehouse transfer.
	StatusWaitTransfer Status = "WAIT_TRANSFER"
	// StatusCancelled marks an operator-cancelled order.
	StatusCancelled Status = "CANCELLED"
)

// Order is the slice of the order aggregate the transfer engine consumes.
type Order struct {
	ID                 int64     `json:"id"`
	Number             string    `json:"number"`
	Status             Status    `json:"status"`
	RequiredTransferID int64     `json:"required_transfer_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Line is one order line. ItemID links to an inventory item when known;
// otherwise resolution falls back to the SKU.
type Line struct {
	ID       int64   `json:"id"`
	OrderID  int64   `json:"order_id"`
	ItemID   int64   `json:"item_id,omitempty"`
	SKU      string  `json:"sku"`
	Quantity float64 `json:"quantity"`
}
