package shared

// Warehouse transfer and stock permissions.
const (
	PermTransfersView    = "transfers.view"
	PermTransfersCreate  = "transfers.create"
	PermTransfersApprove = "transfers.approve"
	PermTransfersCancel  = "transfers.cancel"
	PermTransfersExecute = "transfers.execute"

	PermStockView = "stock.view"

	PermOrdersView = "orders.view"
)

// TransferScopes lists all permissions related to the transfer engine.
func TransferScopes() []string {
	return []string{
		PermTransfersView,
		PermTransfersCreate,
		PermTransfersApprove,
		PermTransfersCancel,
		PermTransfersExecute,
		PermStockView,
		PermOrdersView,
	}
}

// FilterKnownScopes keeps only the permissions this service understands.
// Users often carry grants from other systems sharing the rbac tables;
// those are noise to transfer clients.
func FilterKnownScopes(granted []string) []string {
	known := make(map[string]struct{})
	for _, scope := range TransferScopes() {
		known[scope] = struct{}{}
	}
	out := make([]string, 0, len(granted))
	for _, perm := range granted {
		if _, ok := known[perm]; ok {
			out = append(out, perm)
		}
	}
	return out
}
