package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for stock reads.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermStockView))
		r.Get("/items/{itemID}/balances", h.handleBalances)
		r.Get("/movements", h.handleMovements)
	})
}

type balancesResponse struct {
	Item     Item      `json:"item"`
	Balances []Balance `json:"balances"`
}

func (h *Handler) handleBalances(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item id")
		return
	}
	item, balances, err := h.service.ItemBalances(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "item not found")
			return
		}
		h.logger.Error("list balances", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balancesResponse{Item: item, Balances: balances})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	filter := MovementFilter{
		ItemID:      queryInt(r, "item_id"),
		WarehouseID: queryInt(r, "warehouse_id"),
		TransferID:  queryInt(r, "transfer_id"),
		Limit:       int(queryInt(r, "limit")),
	}
	movements, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	h.logger.Info("listed stock movements",
		slog.Int("count", len(movements)),
		slog.Int64("item_id", filter.ItemID))
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func queryInt(r *http.Request, key string) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
