package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

const nonceKeyPrefix = "auth:nonce:"

// NonceStore persists the raw sign-in nonce for one in-flight Apple
// authentication attempt. SetNX guarantees a single outstanding nonce per
// attempt; GETDEL guarantees read-once consumption.
type NonceStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewNonceStore creates a nonce store with the given attempt TTL.
func NewNonceStore(client redis.UniversalClient, ttl time.Duration) (*NonceStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil for NonceStore")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &NonceStore{client: client, ttl: ttl}, nil
}

// Put stores the raw nonce for an attempt. Returns ErrConflict if the
// attempt already holds an outstanding nonce.
func (s *NonceStore) Put(ctx context.Context, attemptID, rawNonce string) error {
	ok, err := s.client.SetNX(ctx, nonceKeyPrefix+attemptID, rawNonce, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: nonce already outstanding for attempt", apperrors.ErrConflict)
	}
	return nil
}

// Consume atomically reads and deletes the raw nonce for an attempt. A
// second consume for the same attempt returns ErrNotFound.
func (s *NonceStore) Consume(ctx context.Context, attemptID string) (string, error) {
	val, err := s.client.GetDel(ctx, nonceKeyPrefix+attemptID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("failed to consume nonce: %w", err)
	}
	return val, nil
}

// Clear drops any outstanding nonce for an attempt. Safe to call when no
// nonce exists.
func (s *NonceStore) Clear(ctx context.Context, attemptID string) error {
	return s.client.Del(ctx, nonceKeyPrefix+attemptID).Err()
}
