package resilience

import (
	"context"
	"sync"
	"time"

	moorerr "github.com/akodra/mooring/pkg/errors"
)

// CircuitState identifies the breaker position.
type CircuitState string

// Breaker states.
const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half-open"
)

func (s CircuitState) String() string {
	return string(s)
}

// CircuitConfig holds the breaker thresholds.
type CircuitConfig struct {
	FailureThreshold         int           // consecutive failures before opening
	ResetTimeout             time.Duration // cooldown before a half-open probe is allowed
	HalfOpenSuccessThreshold int           // consecutive successes to close again
}

// Validate checks the configuration for values the breaker cannot work with.
func (c CircuitConfig) Validate() error {
	switch {
	case c.FailureThreshold < 1:
		return moorerr.Wrap(moorerr.ErrInvalidInput, "circuit failure threshold must be >= 1")
	case c.ResetTimeout <= 0:
		return moorerr.Wrap(moorerr.ErrInvalidInput, "circuit reset timeout must be positive")
	case c.HalfOpenSuccessThreshold < 1:
		return moorerr.Wrap(moorerr.ErrInvalidInput, "circuit half-open success threshold must be >= 1")
	}
	return nil
}

// DefaultCircuitConfig returns the thresholds used for relay endpoints.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		FailureThreshold:         5,
		ResetTimeout:             30 * time.Second,
		HalfOpenSuccessThreshold: 2,
	}
}

// CircuitBreaker gates calls to one endpoint. It opens after
// FailureThreshold consecutive failures, lets a probe through once
// ResetTimeout has elapsed, and closes again after enough probe successes.
// A breaker outlives individual operations; it is per-endpoint state.
type CircuitBreaker struct {
	cfg CircuitConfig

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	halfOpenSuccess int
	lastFailure     time.Time

	// now is the clock. Replaced in tests.
	now func() time.Time
}

// NewCircuitBreaker validates cfg and returns a closed breaker.
func NewCircuitBreaker(cfg CircuitConfig) (*CircuitBreaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CircuitBreaker{
		cfg:   cfg,
		state: CircuitClosed,
		now:   time.Now,
	}, nil
}

// IsAllowed reports whether a call may proceed. When the breaker is open
// and the reset timeout has elapsed it transitions to half-open here, on
// the check itself, not on a timer.
func (cb *CircuitBreaker) IsAllowed() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.now().Sub(cb.lastFailure) >= cb.cfg.ResetTimeout {
		cb.state = CircuitHalfOpen
		cb.halfOpenSuccess = 0
	}
	return cb.state != CircuitOpen
}

// RecordSuccess feeds a successful call outcome into the state machine.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount = 0
	case CircuitHalfOpen:
		cb.halfOpenSuccess++
		if cb.halfOpenSuccess >= cb.cfg.HalfOpenSuccessThreshold {
			cb.state = CircuitClosed
			cb.failureCount = 0
			cb.halfOpenSuccess = 0
		}
	case CircuitOpen:
		// A success cannot be attributed while open; calls are gated.
	}
}

// RecordFailure feeds a failed call outcome into the state machine and
// stamps the failure time, restarting the open cooldown.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount++
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.state = CircuitOpen
		}
	case CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.halfOpenSuccess = 0
	case CircuitOpen:
	}
}

// State reports the stored state. It does not perform the lazy half-open
// promotion; only IsAllowed does.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// RetryAfter reports how long until an open breaker will admit a probe.
// Zero when the breaker is not open or the cooldown has already elapsed.
func (cb *CircuitBreaker) RetryAfter() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return 0
	}
	remaining := cb.cfg.ResetTimeout - cb.now().Sub(cb.lastFailure)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Trip forces the breaker open, starting the cooldown now. Operator action.
func (cb *CircuitBreaker) Trip() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitOpen
	cb.lastFailure = cb.now()
	cb.halfOpenSuccess = 0
}

// Reset forces the breaker closed and clears all counters. Operator action.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failureCount = 0
	cb.halfOpenSuccess = 0
	cb.lastFailure = time.Time{}
}

// Execute runs op under cb. When the breaker rejects the call it fails
// fast with ErrCircuitOpen carrying the remaining cooldown, without
// invoking op; op's own errors pass through unchanged. Every invoked
// outcome is recorded.
func Execute[T any](ctx context.Context, cb *CircuitBreaker, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if !cb.IsAllowed() {
		err := moorerr.WithDetails(moorerr.ErrCircuitOpen, map[string]string{
			"retry_after": cb.RetryAfter().Round(time.Second).String(),
		})
		return zero, moorerr.WithSuggestion(err, "wait for the cooldown to elapse or force the breaker closed")
	}

	result, err := op(ctx)
	if err != nil {
		cb.RecordFailure()
		return result, err
	}

	cb.RecordSuccess()
	return result, nil
}
