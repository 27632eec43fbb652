package telemetry

import "time"

// Recorder is the recording facade handed to the connection layer and the
// watchdog. Every method tolerates a nil receiver and drops the
// observation, so components take a *Recorder without a nil check at each
// call site.
type Recorder struct{}

// NewRecorder registers the collectors and returns a live recorder.
func NewRecorder() *Recorder {
	Register()
	return &Recorder{}
}

// ConnectAttempt records one resolved connect attempt.
func (r *Recorder) ConnectAttempt(kind, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	connectAttempts.WithLabelValues(kind, outcome).Inc()
	connectDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// SessionTransition records one registry state change.
func (r *Recorder) SessionTransition(from, to string) {
	if r == nil {
		return
	}
	sessionTransitions.WithLabelValues(from, to).Inc()
}

// CircuitTransition records a breaker settling into a new state.
func (r *Recorder) CircuitTransition(kind, state string) {
	if r == nil {
		return
	}
	circuitTransitions.WithLabelValues(kind, state).Inc()
}

// WatchdogSweep records one completed sweep.
func (r *Recorder) WatchdogSweep() {
	if r == nil {
		return
	}
	watchdogSweeps.Inc()
}

// WatchdogReconnect records one stale-session reconnect attempt.
func (r *Recorder) WatchdogReconnect(outcome string) {
	if r == nil {
		return
	}
	watchdogReconnects.WithLabelValues(outcome).Inc()
}

// StoreOperation records one snapshot store call.
func (r *Recorder) StoreOperation(backend, op, outcome string) {
	if r == nil {
		return
	}
	storeOperations.WithLabelValues(backend, op, outcome).Inc()
}

// SetSessionCount publishes the current number of sessions in a state.
func (r *Recorder) SetSessionCount(state string, n int) {
	if r == nil {
		return
	}
	sessionsByState.WithLabelValues(state).Set(float64(n))
}
