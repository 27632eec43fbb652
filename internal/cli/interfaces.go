package cli

import (
	"context"

	"github.com/akodra/mooring/internal/config"
	"github.com/akodra/mooring/internal/connect"
	"github.com/akodra/mooring/internal/output"
	"github.com/akodra/mooring/internal/session"
	"github.com/akodra/mooring/internal/wallet"
)

// Compile-time interface checks.
var (
	_ ConfigProvider = (*config.Config)(nil)
	_ FormatProvider = (*output.Formatter)(nil)
	_ SessionService = (*connect.Service)(nil)
)

// ConfigProvider provides read access to configuration values.
// This interface enables mocking configuration in tests.
type ConfigProvider interface {
	// GetHome returns the mooring home directory path.
	GetHome() string

	// GetLoggingLevel returns the configured logging level.
	GetLoggingLevel() string

	// GetOutputFormat returns the default output format.
	GetOutputFormat() string

	// IsVerbose returns true if verbose output is enabled.
	IsVerbose() bool
}

// FormatProvider provides output format information.
// This interface enables mocking output formatting in tests.
type FormatProvider interface {
	// Format returns the current output format.
	Format() output.Format
}

// SessionService is the slice of the connection orchestrator the commands
// drive. This interface enables mocking the service in tests.
type SessionService interface {
	// Connect establishes a session for kind on chain.
	Connect(ctx context.Context, kind wallet.Kind, chain wallet.ChainRef) (session.ManagedSession, error)

	// Disconnect ends the established session or cancels an in-flight connect.
	Disconnect(ctx context.Context) error

	// RouteCallback parses a wallet app callback URI and dispatches it.
	RouteCallback(ctx context.Context, rawURI string) (connect.CallbackResult, error)

	// LiveTopics merges the live topic sets of every adapter.
	LiveTopics(ctx context.Context) (map[string]struct{}, error)

	// Reconnect re-establishes transport presence for one topic.
	Reconnect(ctx context.Context, kind wallet.Kind, topic string) error

	// Activate selects a usable session for current operations.
	Activate(topic string) (session.ManagedSession, error)

	// Remove deletes one session from the registry.
	Remove(topic string) error

	// Cleanup removes expired sessions, returning the removed count.
	Cleanup() int

	// Sessions returns all registered sessions.
	Sessions() []session.ManagedSession

	// Active returns the currently active session.
	Active() (session.ManagedSession, bool)

	// Session returns one session by topic.
	Session(topic string) (session.ManagedSession, bool)

	// Events returns an independent subscription to the status stream.
	Events() <-chan connect.StatusEvent

	// Close shuts down the service and its adapters.
	Close() error
}
