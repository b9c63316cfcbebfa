package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterKnownScopes(t *testing.T) {
	granted := []string{
		PermTransfersView,
		"payroll.run",
		PermTransfersExecute,
		"accounting.close",
		PermStockView,
	}

	filtered := FilterKnownScopes(granted)
	require.Equal(t, []string{PermTransfersView, PermTransfersExecute, PermStockView}, filtered)
}

func TestFilterKnownScopesEmpty(t *testing.T) {
	require.Empty(t, FilterKnownScopes(nil))
	require.Empty(t, FilterKnownScopes([]string{"other.system"}))
}

func TestTransferScopesCoverLifecycle(t *testing.T) {
	scopes := TransferScopes()
	require.Contains(t, scopes, PermTransfersApprove)
	require.Contains(t, scopes, PermTransfersExecute)
	require.Contains(t, scopes, PermOrdersView)
}
