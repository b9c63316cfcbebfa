package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/orders"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
	"github.com/meridian-erp/meridian-erp/internal/transfers"
	"github.com/meridian-erp/meridian-erp/internal/warehouses"
	"github.com/meridian-erp/meridian-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Sessions         *shared.SessionStore
	TransfersHandler *transfers.Handler
	StockHandler     *stock.Handler
	OrdersHandler    *orders.Handler
	WarehouseHandler *warehouses.Handler
	RBACHandler      *rbac.Handler
	JobHandler       *jobs.Handler
	Pool             *pgxpool.Pool
	RBACMiddleware   rbac.Middleware
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if params.TransfersHandler != nil {
			params.TransfersHandler.MountRoutes(api)
		}
		if params.StockHandler != nil {
			api.Route("/stock", func(sub chi.Router) {
				params.StockHandler.MountRoutes(sub)
			})
		}
		if params.OrdersHandler != nil || params.TransfersHandler != nil {
			api.Route("/orders", func(sub chi.Router) {
				if params.OrdersHandler != nil {
					params.OrdersHandler.MountRoutes(sub)
				}
				if params.TransfersHandler != nil {
					params.TransfersHandler.MountOrderRoutes(sub)
				}
			})
		}
		if params.WarehouseHandler != nil {
			api.Route("/warehouses", func(sub chi.Router) {
				params.WarehouseHandler.MountRoutes(sub)
			})
		}
		if params.RBACHandler != nil {
			api.Route("/me", func(sub chi.Router) {
				params.RBACHandler.MountRoutes(sub)
			})
		}
		if params.JobHandler != nil {
			api.Route("/jobs", func(sub chi.Router) {
				params.JobHandler.MountRoutes(sub)
			})
		}
	})

	return r
}
