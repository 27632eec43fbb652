package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestBreaker(t *testing.T, cfg CircuitConfig) (*CircuitBreaker, *fakeClock) {
	t.Helper()

	cb, err := NewCircuitBreaker(cfg)
	require.NoError(t, err)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb.now = clock.Now
	return cb, clock
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(t, CircuitConfig{
		FailureThreshold:         3,
		ResetTimeout:             30 * time.Second,
		HalfOpenSuccessThreshold: 1,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.True(t, cb.IsAllowed())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.IsAllowed())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(t, CircuitConfig{
		FailureThreshold:         3,
		ResetTimeout:             30 * time.Second,
		HalfOpenSuccessThreshold: 1,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	// The streak broke, so two more failures do not open the breaker.
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_LazyHalfOpenPromotion(t *testing.T) {
	cb, clock := newTestBreaker(t, CircuitConfig{
		FailureThreshold:         1,
		ResetTimeout:             30 * time.Second,
		HalfOpenSuccessThreshold: 1,
	})

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())

	clock.Advance(29 * time.Second)
	assert.False(t, cb.IsAllowed())
	assert.Equal(t, CircuitOpen, cb.State())

	clock.Advance(2 * time.Second)
	// State alone never promotes; the transition happens on the gate check.
	assert.Equal(t, CircuitOpen, cb.State())
	assert.True(t, cb.IsAllowed())
	assert.Equal(t, CircuitHalfOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenClosesAfterSuccesses(t *testing.T) {
	cb, clock := newTestBreaker(t, CircuitConfig{
		FailureThreshold:         1,
		ResetTimeout:             10 * time.Second,
		HalfOpenSuccessThreshold: 2,
	})

	cb.RecordFailure()
	clock.Advance(11 * time.Second)
	require.True(t, cb.IsAllowed())

	cb.RecordSuccess()
	assert.Equal(t, CircuitHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.True(t, cb.IsAllowed())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(t, CircuitConfig{
		FailureThreshold:         1,
		ResetTimeout:             10 * time.Second,
		HalfOpenSuccessThreshold: 2,
	})

	cb.RecordFailure()
	clock.Advance(11 * time.Second)
	require.True(t, cb.IsAllowed())
	cb.RecordSuccess()

	// One probe failure discards the success progress and restarts the cooldown.
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.IsAllowed())
	assert.Equal(t, 10*time.Second, cb.RetryAfter())
}

func TestCircuitBreaker_RetryAfter(t *testing.T) {
	cb, clock := newTestBreaker(t, CircuitConfig{
		FailureThreshold:         1,
		ResetTimeout:             30 * time.Second,
		HalfOpenSuccessThreshold: 1,
	})

	assert.Equal(t, time.Duration(0), cb.RetryAfter())

	cb.RecordFailure()
	assert.Equal(t, 30*time.Second, cb.RetryAfter())

	clock.Advance(10 * time.Second)
	assert.Equal(t, 20*time.Second, cb.RetryAfter())

	clock.Advance(25 * time.Second)
	assert.Equal(t, time.Duration(0), cb.RetryAfter())
}

func TestCircuitBreaker_FailureWhileOpenExtendsCooldown(t *testing.T) {
	cb, clock := newTestBreaker(t, CircuitConfig{
		FailureThreshold:         1,
		ResetTimeout:             30 * time.Second,
		HalfOpenSuccessThreshold: 1,
	})

	cb.RecordFailure()
	clock.Advance(20 * time.Second)
	assert.Equal(t, 10*time.Second, cb.RetryAfter())

	cb.RecordFailure()
	assert.Equal(t, 30*time.Second, cb.RetryAfter())
}

func TestCircuitBreaker_TripAndReset(t *testing.T) {
	cb, _ := newTestBreaker(t, CircuitConfig{
		FailureThreshold:         3,
		ResetTimeout:             30 * time.Second,
		HalfOpenSuccessThreshold: 1,
	})

	cb.Trip()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.IsAllowed())
	assert.Equal(t, 30*time.Second, cb.RetryAfter())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.True(t, cb.IsAllowed())

	// Counters are cleared, so the full threshold applies again.
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())
}
