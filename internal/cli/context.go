package cli

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/akodra/mooring/internal/config"
	"github.com/akodra/mooring/internal/output"
	"github.com/akodra/mooring/internal/securestore"
	"github.com/akodra/mooring/internal/session"
)

// CommandContext holds dependencies for CLI commands. Cfg, Log, and Fmt are
// always populated by the root command; the session subsystems are filled in
// by openSessionEnv on first use, or injected directly by tests.
type CommandContext struct {
	Cfg *config.Config
	Log zerolog.Logger
	Fmt FormatProvider

	Svc       SessionService
	Registry  *session.Registry
	Snapshots *session.SnapshotStore
	Store     securestore.Store
}

// NewCommandContext creates a context with the given dependencies.
func NewCommandContext(cfg *config.Config, log zerolog.Logger, formatter *output.Formatter) *CommandContext {
	cc := &CommandContext{
		Cfg: cfg,
		Log: log,
	}
	if formatter != nil {
		cc.Fmt = formatter
	}
	return cc
}

// WithService sets the session service.
func (c *CommandContext) WithService(svc SessionService) *CommandContext {
	c.Svc = svc
	return c
}

// WithRegistry sets the session registry.
func (c *CommandContext) WithRegistry(reg *session.Registry) *CommandContext {
	c.Registry = reg
	return c
}

// WithSnapshots sets the snapshot store.
func (c *CommandContext) WithSnapshots(snapshots *session.SnapshotStore) *CommandContext {
	c.Snapshots = snapshots
	return c
}

// WithStore sets the secure store backend.
func (c *CommandContext) WithStore(store securestore.Store) *CommandContext {
	c.Store = store
	return c
}

// cmdContextKey is the context key the command context travels under.
type cmdContextKey struct{}

// SetCmdContext attaches the command context to the command's context tree.
func SetCmdContext(cmd *cobra.Command, cc *CommandContext) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	cmd.SetContext(context.WithValue(base, cmdContextKey{}, cc))
}

// GetCmdContext retrieves the command context, nil when none was set.
func GetCmdContext(cmd *cobra.Command) *CommandContext {
	base := cmd.Context()
	if base == nil {
		return nil
	}
	cc, _ := base.Value(cmdContextKey{}).(*CommandContext)
	return cc
}
