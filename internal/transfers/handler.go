package transfers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
)

// Handler wires HTTP endpoints for the transfer lifecycle.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler constructs transfer handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		rbac:     rbac,
		validate: validator.New(),
	}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/transfers", func(r chi.Router) {
		r.With(h.rbac.RequireAny(shared.PermTransfersView)).Get("/", h.handleList)
		r.With(h.rbac.RequireAny(shared.PermTransfersView)).Get("/{transferID}", h.handleGet)
		r.With(h.rbac.RequireAny(shared.PermTransfersCreate)).Post("/", h.handleCreate)
		r.With(h.rbac.RequireAny(shared.PermTransfersApprove)).Post("/{transferID}/approve", h.handleApprove)
		r.With(h.rbac.RequireAny(shared.PermTransfersCancel)).Post("/{transferID}/cancel", h.handleCancel)
		r.With(h.rbac.RequireAny(shared.PermTransfersExecute)).Post("/{transferID}/execute", h.handleExecute)
	})
}

// MountOrderRoutes registers the order-scoped transfer routes. They live on
// the orders sub-router so the order read endpoint resolves alongside them.
func (h *Handler) MountOrderRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermTransfersView)).Get("/{orderID}/availability", h.handleAvailability)
	r.With(h.rbac.RequireAny(shared.PermTransfersCreate)).Post("/{orderID}/propose-transfer", h.handlePropose)
}

type createTransferItem struct {
	ItemID   int64   `json:"item_id" validate:"required,gt=0"`
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
}

type createTransferRequest struct {
	FromWarehouseID int64                `json:"from_warehouse_id" validate:"required,gt=0,nefield=ToWarehouseID"`
	ToWarehouseID   int64                `json:"to_warehouse_id" validate:"required,gt=0"`
	Note            string               `json:"note" validate:"max=500"`
	Items           []createTransferItem `json:"items" validate:"required,min=1,dive"`
}

type transferResponse struct {
	Transfer Transfer       `json:"transfer"`
	Items    []TransferItem `json:"items,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Status: Status(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	transfers, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list transfers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transfers": transfers})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	transferID, ok := pathID(w, r, "transferID")
	if !ok {
		return
	}
	transfer, items, err := h.service.Get(r.Context(), transferID)
	if err != nil {
		h.respondTransferError(w, "get transfer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, transferResponse{Transfer: transfer, Items: items})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	input := CreateInput{
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		Note:            req.Note,
		ActorID:         actor.UserID,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, CreateItemInput{ItemID: item.ItemID, Quantity: item.Quantity})
	}
	transfer, items, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondTransferError(w, "create transfer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, transferResponse{Transfer: transfer, Items: items})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "approve transfer", h.service.Approve)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "cancel transfer", h.service.Cancel)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, transferID, actorID int64) (Transfer, error)) {
	transferID, ok := pathID(w, r, "transferID")
	if !ok {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	transfer, err := fn(r.Context(), transferID, actor.UserID)
	if err != nil {
		h.respondTransferError(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transferResponse{Transfer: transfer})
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	transferID, ok := pathID(w, r, "transferID")
	if !ok {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	result, err := h.service.Execute(r.Context(), transferID, actor.UserID)
	if err != nil {
		var execErr *ExecutionError
		if errors.As(err, &execErr) {
			httpx.ProblemWithViolations(w, http.StatusBadRequest,
				"Execution Blocked", "transfer preconditions failed", execErr.Violations)
			return
		}
		h.respondTransferError(w, "execute transfer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	report, err := h.service.CheckAvailability(r.Context(), orderID)
	if err != nil {
		h.respondTransferError(w, "check availability", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handlePropose(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	transfer, items, err := h.service.ProposeTransfer(r.Context(), orderID, actor.UserID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoShortfall):
			httpx.Problem(w, http.StatusConflict, "No Shortfall", "order is fully covered by the operational warehouse")
		case errors.Is(err, ErrAlreadyProposed):
			httpx.Problem(w, http.StatusConflict, "Already Proposed", err.Error())
		case errors.Is(err, ErrNoCandidates):
			httpx.Problem(w, http.StatusConflict, "No Candidates", err.Error())
		default:
			h.respondTransferError(w, "propose transfer", err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, transferResponse{Transfer: transfer, Items: items})
}

func (h *Handler) respondTransferError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusBadRequest, "Invalid State", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, stock.ErrItemNotFound):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrForbidden),
		errors.Is(err, shared.ErrInvalidState):
		httpx.RespondError(w, err)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+param)
		return 0, false
	}
	return id, true
}
