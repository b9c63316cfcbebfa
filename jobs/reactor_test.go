package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestReactorEnqueuesUnblockTask(t *testing.T) {
	redis := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: redis.Addr()}

	client, err := NewClient(opts)
	require.NoError(t, err)
	defer client.Close()

	reactor := NewReactor(client, nil)
	require.NoError(t, reactor.TransferCompleted(context.Background(), 42))

	inspector := asynq.NewInspector(opts)
	defer inspector.Close()
	pending, err := inspector.ListPendingTasks(QueueDefault)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, TaskTypeOrderUnblock, pending[0].Type)
	require.JSONEq(t, `{"transfer_id":42}`, string(pending[0].Payload))
}

type fakeReleaser struct {
	transferID int64
	released   int64
	err        error
}

func (f *fakeReleaser) ReleaseBlocked(ctx context.Context, transferID int64) (int64, error) {
	f.transferID = transferID
	return f.released, f.err
}

func TestOrderUnblockHandler(t *testing.T) {
	releaser := &fakeReleaser{released: 2}
	handler := NewOrderUnblockHandler(releaser, nil)

	task, err := NewOrderUnblockTask(7)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, int64(7), releaser.transferID)

	releaser.err = errors.New("db down")
	err = handler(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)

	bad := asynq.NewTask(TaskTypeOrderUnblock, []byte("{"))
	require.ErrorIs(t, handler(context.Background(), bad), asynq.SkipRetry)
}

type fakeReconciler struct {
	olderThan time.Duration
	cancelled int
}

func (f *fakeReconciler) ReconcileOrphans(ctx context.Context, olderThan time.Duration) (int, error) {
	f.olderThan = olderThan
	return f.cancelled, nil
}

type fakeCleaner struct {
	olderThan time.Duration
	err       error
}

func (f *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) error {
	f.olderThan = olderThan
	return f.err
}

func TestIdempotencyCleanupHandler(t *testing.T) {
	cleaner := &fakeCleaner{}
	handler := NewIdempotencyCleanupHandler(cleaner, nil)

	task, err := NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, 48*time.Hour, cleaner.olderThan)

	// Zero retention falls back to the default window.
	task, err = NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, 7*24*time.Hour, cleaner.olderThan)

	cleaner.err = errors.New("db down")
	err = handler(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)

	bad := asynq.NewTask(TaskTypeIdempotencyCleanup, []byte("{"))
	require.ErrorIs(t, handler(context.Background(), bad), asynq.SkipRetry)
}

func TestTransferReconcileHandlerDefaultsAge(t *testing.T) {
	reconciler := &fakeReconciler{cancelled: 3}
	handler := NewTransferReconcileHandler(reconciler, nil)

	task, err := NewTransferReconcileTask(0)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, 24*time.Hour, reconciler.olderThan)

	task, err = NewTransferReconcileTask(6 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, 6*time.Hour, reconciler.olderThan)
}
