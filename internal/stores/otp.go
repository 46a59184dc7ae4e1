package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout is part of the external contract: one live code per mobile
// number, prefix-partitioned alongside password_reset entries.
const otpPrefix = "otp:"

var (
	ErrOTPNotFound         = errors.New("otp not found")
	ErrOTPRedisUnavailable = errors.New("otp redis unavailable")
)

// OTPStore keeps the live one-time code per mobile number. A save
// overwrites any existing code (last writer wins); reads never delete,
// codes die by TTL only.
type OTPStore struct {
	redis redis.UniversalClient
}

func NewOTPStore(redisClient redis.UniversalClient) *OTPStore {
	return &OTPStore{redis: redisClient}
}

func otpKey(mobileNumber string) string {
	return otpPrefix + mobileNumber
}

// Save stores the code under the mobile number's key with the given TTL,
// replacing any live code.
func (s *OTPStore) Save(ctx context.Context, mobileNumber, code string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, otpKey(mobileNumber), code, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return nil
}

// Get returns the live code for the mobile number. The code is consumed by
// comparison, not deletion: a successful login leaves it to expire.
func (s *OTPStore) Get(ctx context.Context, mobileNumber string) (string, error) {
	code, err := s.redis.Get(ctx, otpKey(mobileNumber)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrOTPNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return code, nil
}
