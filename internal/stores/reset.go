package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const resetPrefix = "password_reset:"

var (
	ErrResetNotFound         = errors.New("reset token not found")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

// ResetStore maps opaque password-reset tokens to the email they were
// issued for. Tokens are single-use: deleted on successful completion,
// expired by TTL otherwise. A failed completion leaves the token intact
// so the caller can retry.
type ResetStore struct {
	redis redis.UniversalClient
}

func NewResetStore(redisClient redis.UniversalClient) *ResetStore {
	return &ResetStore{redis: redisClient}
}

func resetKey(token string) string {
	return resetPrefix + token
}

// Save stores token -> email with the given TTL.
func (s *ResetStore) Save(ctx context.Context, token, email string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, resetKey(token), email, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

// GetEmail returns the email a live token was issued for.
func (s *ResetStore) GetEmail(ctx context.Context, token string) (string, error) {
	email, err := s.redis.Get(ctx, resetKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrResetNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return email, nil
}

// Delete consumes the token after a successful password change.
func (s *ResetStore) Delete(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, resetKey(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}
