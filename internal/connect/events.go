// Package connect orchestrates wallet connections: the Adapter contract
// transports implement, the factory that builds adapters per kind, and the
// Service that drives connect, disconnect, and callback routing over the
// session registry.
package connect

import (
	"github.com/akodra/mooring/internal/session"
	"github.com/akodra/mooring/internal/wallet"
)

// StatusType discriminates the events on an adapter's stream.
type StatusType string

// Status event types.
const (
	// StatusConnecting fires when an attempt starts. For kinds that pair
	// via a URI the event carries it for display.
	StatusConnecting StatusType = "connecting"

	// StatusRetrying fires before each automatic retry suspension.
	StatusRetrying StatusType = "retrying"

	// StatusConnected fires once a session is established.
	StatusConnected StatusType = "connected"

	// StatusDisconnected fires when a session ends, whether requested or
	// dropped by the transport.
	StatusDisconnected StatusType = "disconnected"

	// StatusError fires when an attempt fails. Retryable errors are
	// followed by StatusRetrying; non-retryable ones end the attempt.
	StatusError StatusType = "error"
)

func (t StatusType) String() string {
	return string(t)
}

// StatusEvent is one observation on an adapter's event stream. Fields
// beyond Type and Kind are populated per event type.
type StatusEvent struct {
	Type StatusType
	Kind wallet.Kind

	// AttemptID correlates the events of one connect attempt.
	AttemptID string

	// PairingURI is the URI the wallet app must open to approve the
	// connection. Set on StatusConnecting.
	PairingURI string

	// Attempt and MaxRetries describe the retry schedule position.
	// Set on StatusRetrying.
	Attempt    int
	MaxRetries int

	// Session is the established session. Set on StatusConnected.
	Session *session.ManagedSession

	// Reason states why the session ended. Set on StatusDisconnected.
	Reason string

	// Err and Retryable describe the failure. Set on StatusError.
	Err       error
	Retryable bool
}

// Terminal reports whether the event resolves a pending connect attempt.
// Connected and Disconnected always do; an error does unless the adapter
// is about to retry it.
func (e StatusEvent) Terminal() bool {
	switch e.Type {
	case StatusConnected, StatusDisconnected:
		return true
	case StatusError:
		return !e.Retryable
	case StatusConnecting, StatusRetrying:
		return false
	default:
		return false
	}
}
