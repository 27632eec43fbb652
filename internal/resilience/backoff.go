// Package resilience provides the retry and failure-isolation primitives
// used by the connection layer: exponential backoff with signed jitter and
// a three-state circuit breaker. Both are transport-agnostic; callers layer
// them as Execute(cb, ... Retry(b, op)) so the breaker counts a whole retry
// cycle as one failure.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	moorerr "github.com/akodra/mooring/pkg/errors"
)

// BackoffConfig holds the immutable delay schedule parameters.
type BackoffConfig struct {
	InitialDelay time.Duration // delay before the first retry, pre-jitter
	MaxDelay     time.Duration // cap applied before jitter
	Multiplier   float64       // growth factor per retry, >= 1
	JitterFactor float64       // fraction of the capped delay randomized, in [0,1]
	MaxRetries   int           // retries after the initial attempt
}

// Validate checks the configuration for values the schedule cannot work with.
func (c BackoffConfig) Validate() error {
	switch {
	case c.InitialDelay <= 0:
		return moorerr.Wrap(moorerr.ErrInvalidInput, "backoff initial delay must be positive")
	case c.MaxDelay < c.InitialDelay:
		return moorerr.Wrap(moorerr.ErrInvalidInput, "backoff max delay must be >= initial delay")
	case c.Multiplier < 1:
		return moorerr.Wrap(moorerr.ErrInvalidInput, "backoff multiplier must be >= 1")
	case c.JitterFactor < 0 || c.JitterFactor > 1:
		return moorerr.Wrap(moorerr.ErrInvalidInput, "backoff jitter factor must be in [0,1]")
	case c.MaxRetries < 0:
		return moorerr.Wrap(moorerr.ErrInvalidInput, "backoff max retries must be >= 0")
	}
	return nil
}

// DefaultBackoffConfig returns the schedule used for relay reconnects:
// 4 attempts total (1 initial + 3 retries) with pre-jitter delays 1s, 2s, 4s.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
		MaxRetries:   3,
	}
}

// Backoff computes retry delays and tracks how many retries the current
// logical operation has consumed. A Backoff is reusable across operations;
// Retry resets the counter at the start of each run.
type Backoff struct {
	cfg BackoffConfig

	mu      sync.Mutex
	current int

	// randFn returns a uniform float64 in [0,1). Replaced in tests.
	randFn func() float64
}

// NewBackoff validates cfg and returns a ready Backoff.
func NewBackoff(cfg BackoffConfig) (*Backoff, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Backoff{
		cfg:    cfg,
		randFn: rand.Float64, //nolint:gosec // G404: jitter does not require cryptographic randomness
	}, nil
}

// Config returns the schedule parameters.
func (b *Backoff) Config() BackoffConfig {
	return b.cfg
}

// DelayFor returns the jittered delay for retry number n:
// min(initial*multiplier^n, max), shifted by up to JitterFactor of itself
// in either direction, floored at zero. Jitter is signed so a fleet of
// clients that all hit the cap do not synchronize their retries.
func (b *Backoff) DelayFor(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	base := float64(b.cfg.InitialDelay) * math.Pow(b.cfg.Multiplier, float64(retry))
	capped := math.Min(base, float64(b.cfg.MaxDelay))
	jitter := capped * b.cfg.JitterFactor * (2*b.randFn() - 1)
	delay := capped + jitter
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Reset returns the retry counter to zero for a new logical operation.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = 0
}

// Attempt reports how many retries the current operation has consumed.
func (b *Backoff) Attempt() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Exhausted reports whether the retry budget is spent.
func (b *Backoff) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current >= b.cfg.MaxRetries
}

// advance consumes one retry and returns the 1-based ordinal of the retry
// about to run.
func (b *Backoff) advance() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current++
	return b.current
}

// RetryPolicy controls which failures Retry re-attempts and lets callers
// observe each scheduled retry. Nil fields mean retry-everything and
// no observer.
type RetryPolicy struct {
	// ShouldRetry reports whether the failure warrants another attempt.
	// Non-retryable errors propagate unchanged after the first failure.
	ShouldRetry func(err error) bool

	// OnRetry is invoked before each suspension with the 1-based retry
	// ordinal, the delay about to be slept, and the triggering error.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Retry runs op with automatic retry on the b schedule. The counter resets
// at the start, so a shared Backoff observes only the current run. On a
// non-retryable or budget-exhausting failure the last error propagates
// unchanged, never wrapped. Sleeping between attempts is the only
// suspension point and is cut short by ctx.
func Retry[T any](ctx context.Context, b *Backoff, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	var result T
	var err error

	b.Reset()
	for {
		result, err = op(ctx)
		if err == nil {
			return result, nil
		}

		if policy.ShouldRetry != nil && !policy.ShouldRetry(err) {
			return result, err
		}
		if b.Exhausted() {
			return result, err
		}

		attempt := b.advance()
		delay := b.DelayFor(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
}
