package domain

import (
	"context"
	"time"
)

// RateLimiter provides rate limiting shared across processes.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides non-blocking keyed locks. Acquire returns ErrLockHeld
// when another holder owns key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
