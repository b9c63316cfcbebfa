package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/orders"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
	"github.com/meridian-erp/meridian-erp/internal/transfers"
	"github.com/meridian-erp/meridian-erp/internal/warehouses"
	"github.com/meridian-erp/meridian-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, logger)

	auditLogger := shared.NewAuditLogger(pool)
	rbacService := allowAllAccess{}

	transfersRepo := transfers.NewRepository(pool)
	transfersService := transfers.NewService(transfers.ServiceParams{
		Repo:       transfersRepo,
		Orders:     ordersService,
		Warehouses: warehouses.NewRepository(pool),
		Stock:      stock.NewRepository(pool),
		Access:     rbacService,
		Audit:      auditLogger,
		Logger:     logger,
	})

	idempotencyStore := shared.NewIdempotencyStore(pool)

	reconcileTask, err := jobs.NewTransferReconcileTask(cfg.TransferOrphanAge)
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(7 * 24 * time.Hour)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeOrderUnblock, Handler: jobs.NewOrderUnblockHandler(ordersService, logger)},
			{Type: jobs.TaskTypeTransferReconcile, Handler: jobs.NewTransferReconcileHandler(transfersService, logger)},
			{Type: jobs.TaskTypeIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupHandler(idempotencyStore, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 2 * * *", Task: reconcileTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "15 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// allowAllAccess satisfies the warehouse access port for background jobs,
// which run without an acting user.
type allowAllAccess struct{}

func (allowAllAccess) CanAccessWarehouse(ctx context.Context, userID, warehouseID int64) (bool, error) {
	return true, nil
}
