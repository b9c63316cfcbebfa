package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes the current actor's effective grants so clients can shape
// their UI without probing every endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs rbac handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers rbac routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/permissions", h.handlePermissions)
}

type permissionsResponse struct {
	UserID      int64            `json:"user_id"`
	Permissions []string         `json:"permissions"`
	Warehouses  []WarehouseGrant `json:"warehouses"`
}

func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
		return
	}
	perms, err := h.service.EffectivePermissions(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("effective permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	grants, err := h.service.WarehouseGrants(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("warehouse grants", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		UserID:      actor.UserID,
		Permissions: shared.FilterKnownScopes(perms),
		Warehouses:  grants,
	})
}
