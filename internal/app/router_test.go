package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/orders"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/transfers"
)

func newTestRouter() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "test", AppRequestTimeout: time.Second}
	return NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		TransfersHandler: transfers.NewHandler(logger, nil, rbac.Middleware{}),
		OrdersHandler:    orders.NewHandler(logger, nil, rbac.Middleware{}),
	})
}

// Anonymous requests must reach the rbac guard on every mounted route. A 404
// here means the route never resolved; 403 means routing worked and the
// permission check rejected the missing actor.
func TestRouterResolvesOrderAndTransferRoutes(t *testing.T) {
	router := newTestRouter()

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/orders/123"},
		{http.MethodGet, "/api/orders/123/availability"},
		{http.MethodPost, "/api/orders/123/propose-transfer"},
		{http.MethodGet, "/api/transfers"},
		{http.MethodPost, "/api/transfers/5/execute"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equalf(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
