package transfers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/orders"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func newTestHandler(store *fakeStore) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, newTestService(store), rbac.Middleware{})
}

func newHandlerRequest(method, target, body string, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = shared.ContextWithActor(ctx, shared.Actor{UserID: 7, Name: "tester"})
	return req.WithContext(ctx)
}

func TestHandleCreateRejectsSameWarehouse(t *testing.T) {
	store := newFakeStore()
	seedWarehouses(store)
	seedItems(store)
	handler := newTestHandler(store)

	body := `{"from_warehouse_id":2,"to_warehouse_id":2,"items":[{"item_id":10,"quantity":5}]}`
	rec := httptest.NewRecorder()
	handler.handleCreate(rec, newHandlerRequest(http.MethodPost, "/transfers", body, nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	require.Equal(t, "Validation Failed", problem.Title)
}

func TestHandleCreatePersistsTransfer(t *testing.T) {
	store := newFakeStore()
	seedWarehouses(store)
	seedItems(store)
	handler := newTestHandler(store)

	body := `{"from_warehouse_id":2,"to_warehouse_id":1,"note":"restock","items":[{"item_id":10,"quantity":5}]}`
	rec := httptest.NewRecorder()
	handler.handleCreate(rec, newHandlerRequest(http.MethodPost, "/transfers", body, nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp transferResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, strings.HasPrefix(resp.Transfer.Number, "TRF-"))
	require.Equal(t, StatusDraft, resp.Transfer.Status)
	require.Equal(t, int64(7), resp.Transfer.CreatedBy)
	require.Len(t, resp.Items, 1)
	require.Equal(t, "WIDGET", resp.Items[0].SKU)
}

func TestHandleGetUnknownTransfer(t *testing.T) {
	store := newFakeStore()
	handler := newTestHandler(store)

	rec := httptest.NewRecorder()
	req := newHandlerRequest(http.MethodGet, "/transfers/99", "", map[string]string{"transferID": "99"})
	handler.handleGet(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetRejectsBadID(t *testing.T) {
	store := newFakeStore()
	handler := newTestHandler(store)

	rec := httptest.NewRecorder()
	req := newHandlerRequest(http.MethodGet, "/transfers/abc", "", map[string]string{"transferID": "abc"})
	handler.handleGet(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExecuteReportsViolations(t *testing.T) {
	store := newFakeStore()
	seedWarehouses(store)
	seedItems(store)
	store.setBalance(2, 10, 3)
	id := seedTransfer(store, StatusPending, TransferItem{ItemID: 10, SKU: "WIDGET", Quantity: 8})
	handler := newTestHandler(store)

	rec := httptest.NewRecorder()
	req := newHandlerRequest(http.MethodPost, "/transfers/"+strconv.FormatInt(id, 10)+"/execute", "",
		map[string]string{"transferID": strconv.FormatInt(id, 10)})
	handler.handleExecute(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem struct {
		Title      string      `json:"title"`
		Violations []Violation `json:"violations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	require.Equal(t, "Execution Blocked", problem.Title)
	require.Len(t, problem.Violations, 1)
	require.Equal(t, ReasonInsufficientStock, problem.Violations[0].Reason)
}

func TestHandleProposeConflictWhenCovered(t *testing.T) {
	store := newFakeStore()
	seedWarehouses(store)
	seedItems(store)
	store.setBalance(1, 10, 50)
	seedOrder(store, 100, orders.Line{ItemID: 10, SKU: "WIDGET", Quantity: 5})
	handler := newTestHandler(store)

	rec := httptest.NewRecorder()
	req := newHandlerRequest(http.MethodPost, "/orders/100/propose-transfer", "",
		map[string]string{"orderID": "100"})
	handler.handlePropose(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	require.Equal(t, "No Shortfall", problem.Title)
}
