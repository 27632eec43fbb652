package connect

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/akodra/mooring/internal/wallet"
)

// RateLimiter throttles connect attempts per wallet kind using a token
// bucket, so a scripted caller cannot hammer a wallet app or relay.
type RateLimiter struct {
	limiters   map[wallet.Kind]*rate.Limiter
	mu         sync.RWMutex
	rateLimit  rate.Limit
	burstLimit int
}

// NewRateLimiter creates a rate limiter allowing attemptsPerMinute
// sustained with bursts up to burst.
func NewRateLimiter(attemptsPerMinute float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters:   make(map[wallet.Kind]*rate.Limiter),
		rateLimit:  rate.Limit(attemptsPerMinute / 60.0),
		burstLimit: burst,
	}
}

// DefaultRateLimiter returns a limiter with default settings:
// 12 attempts/minute, burst of 3.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(12, 3)
}

// Allow reports whether an attempt for the kind may proceed right now.
func (r *RateLimiter) Allow(kind wallet.Kind) bool {
	return r.getLimiter(kind).Allow()
}

// Wait blocks until an attempt for the kind is allowed or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context, kind wallet.Kind) error {
	return r.getLimiter(kind).Wait(ctx)
}

// getLimiter returns the limiter for the given kind, creating one if needed.
func (r *RateLimiter) getLimiter(kind wallet.Kind) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[kind]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = r.limiters[kind]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(r.rateLimit, r.burstLimit)
	r.limiters[kind] = limiter
	return limiter
}
