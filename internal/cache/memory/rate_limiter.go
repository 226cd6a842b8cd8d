package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// RateLimiter implements domain.RateLimiter with one token bucket per key.
// Buckets refill at limit tokens per window with a burst of limit.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   int
	window  time.Duration
}

// NewRateLimiter creates a RateLimiter whose Wait admits limit calls per
// window for each key.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		window:  window,
	}
}

func (rl *RateLimiter) bucket(key string, limit int, window time.Duration) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
		rl.buckets[key] = b
	}
	return b
}

// Allow reports whether one call under key fits limit per window. The
// bucket for key is created on first use with these parameters.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		limit, window = rl.limit, rl.window
	}
	return rl.bucket(key, limit, window).Allow(), nil
}

// Wait blocks until a call under key is admitted or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	if err := rl.bucket(key, rl.limit, rl.window).Wait(ctx); err != nil {
		return domain.E(domain.KindTransient, "memory: rate limit wait", err)
	}
	return nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
