package rate

import "errors"

var (
	// ErrRateLimited means the attempt budget for the current window is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps infrastructure failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
