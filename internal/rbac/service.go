package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// Service resolves effective permissions and warehouse grants.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// EffectivePermissions returns the union of permissions granted to the user
// through its roles.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("rbac service not initialised")
	}
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT p.name
FROM permissions p
JOIN role_permissions rp ON rp.permission_id = p.id
JOIN user_roles ur ON ur.role_id = rp.role_id
WHERE ur.user_id = $1
ORDER BY p.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

// WarehouseGrants returns the warehouses the user may operate against.
func (s *Service) WarehouseGrants(ctx context.Context, userID int64) ([]WarehouseGrant, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("rbac service not initialised")
	}
	rows, err := s.pool.Query(ctx, `SELECT user_id, warehouse_id, granted_at
FROM user_warehouse_access WHERE user_id = $1 ORDER BY warehouse_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []WarehouseGrant
	for rows.Next() {
		var g WarehouseGrant
		if err := rows.Scan(&g.UserID, &g.WarehouseID, &g.GrantedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// CanAccessWarehouse reports whether the user holds a grant for the warehouse.
func (s *Service) CanAccessWarehouse(ctx context.Context, userID, warehouseID int64) (bool, error) {
	if s == nil || s.pool == nil {
		return false, errors.New("rbac service not initialised")
	}
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_warehouse_access WHERE user_id = $1 AND warehouse_id = $2)`, userID, warehouseID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
