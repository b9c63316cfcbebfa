package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound indicates an unknown or expired token.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore resolves API bearer tokens to user ids via Redis.
type SessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, prefix string, ttl time.Duration) *SessionStore {
	if prefix == "" {
		prefix = "meridian_session"
	}
	return &SessionStore{client: client, prefix: prefix, ttl: ttl}
}

// Create issues a new token for the user.
func (s *SessionStore) Create(ctx context.Context, userID int64) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("session store not initialised")
	}
	if userID == 0 {
		return "", errors.New("session requires a user id")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	if err := s.client.Set(ctx, s.key(token), userID, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the user id bound to the token, refreshing its TTL.
func (s *SessionStore) Resolve(ctx context.Context, token string) (int64, error) {
	if s == nil || s.client == nil {
		return 0, errors.New("session store not initialised")
	}
	if token == "" {
		return 0, ErrSessionNotFound
	}
	raw, err := s.client.Get(ctx, s.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrSessionNotFound
		}
		return 0, err
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID == 0 {
		return 0, ErrSessionNotFound
	}
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, s.key(token), s.ttl).Err()
	}
	return userID, nil
}

// Revoke invalidates a token.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if s == nil || s.client == nil {
		return errors.New("session store not initialised")
	}
	if token == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(token)).Err()
}

func (s *SessionStore) key(token string) string {
	return fmt.Sprintf("%s:%s", s.prefix, token)
}
