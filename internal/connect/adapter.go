package connect

import (
	"context"
	"net/url"

	"github.com/akodra/mooring/internal/wallet"
)

// ConnectParams carries the target of one connect attempt.
type ConnectParams struct {
	// Chain selects the network, validated against the kind before the
	// adapter sees it.
	Chain wallet.ChainRef

	// AttemptID correlates the attempt's events. Adapters echo it on
	// every event the attempt produces, so stray terminal events from an
	// earlier session can never resolve a newer attempt.
	AttemptID string
}

// Callback actions a wallet app can return with.
const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
)

// CallbackResult is what an adapter extracted from an app-to-app callback.
type CallbackResult struct {
	Kind   wallet.Kind
	Topic  string
	Action string

	// Payload is the decrypted callback body for kinds that seal their
	// callbacks, nil otherwise.
	Payload []byte
}

// Adapter binds one wallet kind to its transport. Connect is asynchronous:
// it may fail fast with a validation error, but attempt outcomes arrive on
// the Events stream so a disconnect issued mid-attempt can terminate it.
//
// Implementations own the stream and close it from Close. Events must be
// emitted in order; the caller guarantees a running consumer, so sends
// never block for long.
type Adapter interface {
	// Kind identifies the wallet kind this adapter serves.
	Kind() wallet.Kind

	// Connect starts an attempt targeting params. Validation failures
	// return synchronously; everything later arrives on Events.
	Connect(ctx context.Context, params ConnectParams) error

	// Disconnect ends the current session or cancels an in-flight
	// attempt. Either way a terminal event follows on the stream.
	Disconnect(ctx context.Context) error

	// LiveTopics reports the topics the transport currently considers
	// established.
	LiveTopics(ctx context.Context) (map[string]struct{}, error)

	// Events returns the adapter's event stream.
	Events() <-chan StatusEvent

	// HandleCallback decodes a return callback's query parameters.
	HandleCallback(ctx context.Context, values url.Values) (CallbackResult, error)

	// Close releases transport resources and closes the event stream.
	Close() error
}
