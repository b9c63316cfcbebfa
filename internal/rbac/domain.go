package rbac

import "time"

// WarehouseGrant allows a user to operate against a specific warehouse.
type WarehouseGrant struct {
	UserID      int64     `json:"user_id"`
	WarehouseID int64     `json:"warehouse_id"`
	GrantedAt   time.Time `json:"granted_at"`
}
