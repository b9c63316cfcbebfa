package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeOrderUnblock releases orders waiting on a completed transfer.
	TaskTypeOrderUnblock = "order:unblock"
	// TaskTypeTransferReconcile sweeps orphaned auto-proposed drafts.
	TaskTypeTransferReconcile = "transfer:reconcile"
	// TaskTypeIdempotencyCleanup prunes aged idempotency keys.
	TaskTypeIdempotencyCleanup = "idempotency:cleanup"
)

// OrderUnblockPayload identifies the completed transfer.
type OrderUnblockPayload struct {
	TransferID int64 `json:"transfer_id"`
}

// NewOrderUnblockTask constructs an Asynq task for releasing blocked orders.
func NewOrderUnblockTask(transferID int64) (*asynq.Task, error) {
	body, err := json.Marshal(OrderUnblockPayload{TransferID: transferID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeOrderUnblock, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// OrderReleaser releases orders blocked on a transfer.
type OrderReleaser interface {
	ReleaseBlocked(ctx context.Context, transferID int64) (int64, error)
}

// NewOrderUnblockHandler builds the handler for TaskTypeOrderUnblock.
func NewOrderUnblockHandler(releaser OrderReleaser, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OrderUnblockPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		released, err := releaser.ReleaseBlocked(ctx, payload.TransferID)
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("order unblock processed",
				slog.Int64("transfer_id", payload.TransferID),
				slog.Int64("released", released))
		}
		return nil
	}
}

// TransferReconcilePayload carries the orphan age threshold.
type TransferReconcilePayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewTransferReconcileTask constructs the periodic reconcile task.
func NewTransferReconcileTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(TransferReconcilePayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeTransferReconcile, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries the key retention window.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs the periodic key-pruning task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleaner removes processed keys past retention.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencyCleanupHandler builds the handler for TaskTypeIdempotencyCleanup.
func NewIdempotencyCleanupHandler(cleaner IdempotencyCleaner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.Retention <= 0 {
			payload.Retention = 7 * 24 * time.Hour
		}
		if err := cleaner.Cleanup(ctx, payload.Retention); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("idempotency cleanup processed",
				slog.Duration("retention", payload.Retention))
		}
		return nil
	}
}

// TransferReconciler cancels aged orphaned proposals.
type TransferReconciler interface {
	ReconcileOrphans(ctx context.Context, olderThan time.Duration) (int, error)
}

// NewTransferReconcileHandler builds the handler for TaskTypeTransferReconcile.
func NewTransferReconcileHandler(reconciler TransferReconciler, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload TransferReconcilePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.OlderThan <= 0 {
			payload.OlderThan = 24 * time.Hour
		}
		cancelled, err := reconciler.ReconcileOrphans(ctx, payload.OlderThan)
		if err != nil {
			return err
		}
		if logger != nil && cancelled > 0 {
			logger.Info("transfer reconcile processed", slog.Int("cancelled", cancelled))
		}
		return nil
	}
}
