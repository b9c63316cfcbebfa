package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		title  string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, "Not Found"},
		{"forbidden", shared.ErrForbidden, http.StatusForbidden, "Forbidden"},
		{"invalid state", shared.ErrInvalidState, http.StatusBadRequest, "Invalid State"},
		{"validation", ErrValidation, http.StatusBadRequest, "Validation Failed"},
		{"duplicate", ErrDuplicate, http.StatusConflict, "Duplicate"},
		{"tx conflict", fmt.Errorf("%w: concurrent execute", shared.ErrTxConflict), http.StatusConflict, "Transaction Conflict"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)

			require.Equal(t, tc.status, rec.Code)
			var problem ProblemDetail
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
			require.Equal(t, tc.title, problem.Title)
			require.Equal(t, tc.status, problem.Status)
		})
	}
}
