package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(client, "", time.Hour), server
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store, _ := newTestSessionStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, 42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)

	require.NoError(t, store.Revoke(ctx, token))
	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreExpiry(t *testing.T) {
	store, server := newTestSessionStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, 7)
	require.NoError(t, err)

	server.FastForward(2 * time.Hour)
	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreRejectsUnknownToken(t *testing.T) {
	store, _ := newTestSessionStore(t)
	_, err := store.Resolve(context.Background(), "not-a-token")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = store.Create(context.Background(), 0)
	require.Error(t, err)
}
