package jobs

import (
	"context"
	"log/slog"
)

// Reactor signals transfer completion to the order pipeline by enqueueing an
// unblock task. Decoupling the release from the execution request keeps the
// HTTP path fast and survives order-side slowness.
type Reactor struct {
	client *Client
	logger *slog.Logger
}

// NewReactor constructs Reactor.
func NewReactor(client *Client, logger *slog.Logger) *Reactor {
	return &Reactor{client: client, logger: logger}
}

// TransferCompleted enqueues the order unblock task for the transfer.
func (r *Reactor) TransferCompleted(ctx context.Context, transferID int64) error {
	task, err := NewOrderUnblockTask(transferID)
	if err != nil {
		return err
	}
	info, err := r.client.Enqueue(ctx, task)
	if err != nil {
		return err
	}
	if r.logger != nil {
		r.logger.Info("order unblock enqueued",
			slog.Int64("transfer_id", transferID),
			slog.String("task_id", info.ID))
	}
	return nil
}
