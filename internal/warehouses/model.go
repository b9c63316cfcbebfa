package warehouses

import (
	"errors"
	"time"
)

// Warehouse represents a physical stock location. Exactly one active
// warehouse is flagged operational: the location orders are fulfilled from.
type Warehouse struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	IsActive      bool      `json:"is_active"`
	IsOperational bool      `json:"is_operational"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ErrNoOperationalWarehouse indicates that no warehouse is configured as the
// fulfillment source. This is a configuration fault, not a per-request error.
var ErrNoOperationalWarehouse = errors.New("warehouses: no operational warehouse configured")
