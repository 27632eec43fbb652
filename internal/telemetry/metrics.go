// Package telemetry exposes the Prometheus collectors and the optional
// diagnostics listener. Collectors register against the default registry
// exactly once; the Recorder facade is nil-safe so the connection layer
// never has to care whether telemetry is enabled.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// namespace prefixes every metric name.
const namespace = "mooring"

// Outcome labels shared by the counters below.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeMiss        = "miss"
	OutcomeDeclined    = "declined"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeCanceled    = "canceled"
)

//nolint:gochecknoglobals // Process-wide metric collectors, registered once
var (
	registerOnce sync.Once

	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connect attempts by wallet kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	connectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_duration_seconds",
			Help:      "Connect attempt duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	sessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state transitions.",
		},
		[]string{"from", "to"},
	)
	circuitTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_transitions_total",
			Help:      "Circuit breaker state changes by wallet kind.",
		},
		[]string{"kind", "state"},
	)
	watchdogSweeps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watchdog_sweeps_total",
			Help:      "Completed watchdog sweeps.",
		},
	)
	watchdogReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watchdog_reconnects_total",
			Help:      "Watchdog reconnect attempts by outcome.",
		},
		[]string{"outcome"},
	)
	storeOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Snapshot store operations by backend, operation, and outcome.",
		},
		[]string{"backend", "op", "outcome"},
	)
	sessionsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Registered sessions by state.",
		},
		[]string{"state"},
	)
)

// Register installs the collectors into the default registry. Safe to call
// from every entry point; only the first call registers.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connectAttempts,
			connectDuration,
			sessionTransitions,
			circuitTransitions,
			watchdogSweeps,
			watchdogReconnects,
			storeOperations,
			sessionsByState,
		)
	})
}
