package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/akodra/mooring/internal/output"
	"github.com/akodra/mooring/internal/session"
	"github.com/akodra/mooring/internal/wallet"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

// out is a helper for CLI output that ignores write errors (standard pattern for CLI tools).
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func out(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}

// outln is a helper for CLI output with newline.
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func outln(w io.Writer, args ...interface{}) {
	fmt.Fprintln(w, args...)
}

// sessionsCmd is the parent command for session registry operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage wallet sessions",
	Long: `Inspect and manage the session registry.

Every connected wallet keeps one registry entry, keyed by wallet id. Stale
sessions are reconnected by the watchdog, never deleted; expired sessions are
never reconnected and can be removed with cleanup.`,
}

// sessionsListCmd lists all sessions.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sessionsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List all sessions",
	Long:    `List every session in the registry with its state and validity horizon.`,
	Example: `  mooring sessions list`,
	Args:    cobra.NoArgs,
	RunE:    runSessionsList,
}

// sessionsShowCmd shows one session in detail.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sessionsShowCmd = &cobra.Command{
	Use:     "show <wallet-id>",
	Short:   "Show one session in detail",
	Long:    `Show the full record of one session, addressed by wallet id or topic.`,
	Example: `  mooring sessions show reown_0x8ba1f109551bd432803012645ac136ddd64dba72`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSessionsShow,
}

// sessionsActivateCmd selects a session for current operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sessionsActivateCmd = &cobra.Command{
	Use:   "activate <wallet-id|topic>",
	Short: "Make a session the active one",
	Long: `Make a usable session the active one.

Stale and expired sessions cannot be activated; the error names the command
that resolves each case.`,
	Example: `  mooring sessions activate reown_0x8ba1f109551bd432803012645ac136ddd64dba72`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSessionsActivate,
}

// sessionsRemoveCmd deletes one session.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sessionsRemoveCmd = &cobra.Command{
	Use:     "remove <wallet-id>",
	Short:   "Remove one session from the registry",
	Long:    `Remove one session from the registry regardless of its state.`,
	Example: `  mooring sessions remove reown_0x8ba1f109551bd432803012645ac136ddd64dba72`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSessionsRemove,
}

// sessionsCleanupCmd removes expired sessions.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sessionsCleanupCmd = &cobra.Command{
	Use:     "cleanup",
	Short:   "Remove expired sessions",
	Long:    `Remove every session past its validity horizon and report the count.`,
	Example: `  mooring sessions cleanup`,
	Args:    cobra.NoArgs,
	RunE:    runSessionsCleanup,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsActivateCmd)
	sessionsCmd.AddCommand(sessionsRemoveCmd)
	sessionsCmd.AddCommand(sessionsCleanupCmd)
	enrichParentLong(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	cmdCtx := GetCmdContext(cmd)

	env, err := openSessionEnv(cmdCtx)
	if err != nil {
		return err
	}
	defer env.Close()

	sessions := env.Svc.Sessions()
	w := cmd.OutOrStdout()

	if cmdCtx.Fmt.Format() == output.FormatJSON {
		views := make([]sessionView, len(sessions))
		for i, ms := range sessions {
			views[i] = sessionPayload(ms)
		}
		return writeJSON(w, views)
	}

	if len(sessions) == 0 {
		outln(w, "No sessions.")
		outln(w, "Connect a wallet with: mooring connect <kind>")
		return nil
	}

	displaySessionTable(w, sessions)
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	cmdCtx := GetCmdContext(cmd)

	env, err := openSessionEnv(cmdCtx)
	if err != nil {
		return err
	}
	defer env.Close()

	ms, err := resolveSession(env.Svc, args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cmdCtx.Fmt.Format() == output.FormatJSON {
		return writeJSON(w, sessionPayload(ms))
	}
	displaySessionText(w, ms)
	return nil
}

func runSessionsActivate(cmd *cobra.Command, args []string) error {
	cmdCtx := GetCmdContext(cmd)

	env, err := openSessionEnv(cmdCtx)
	if err != nil {
		return err
	}
	defer env.Close()

	ms, err := resolveSession(env.Svc, args[0])
	if err != nil {
		return err
	}
	activated, err := env.Svc.Activate(ms.Topic)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cmdCtx.Fmt.Format() == output.FormatJSON {
		return writeJSON(w, sessionPayload(activated))
	}
	out(w, "Activated %s.\n", activated.WalletID)
	return nil
}

func runSessionsRemove(cmd *cobra.Command, args []string) error {
	cmdCtx := GetCmdContext(cmd)

	env, err := openSessionEnv(cmdCtx)
	if err != nil {
		return err
	}
	defer env.Close()

	ms, err := resolveSession(env.Svc, args[0])
	if err != nil {
		return err
	}
	if err := env.Svc.Remove(ms.Topic); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cmdCtx.Fmt.Format() == output.FormatJSON {
		payload := struct {
			Status   string `json:"status"`
			WalletID string `json:"walletId"`
		}{Status: "removed", WalletID: ms.WalletID}
		return writeJSON(w, payload)
	}
	out(w, "Removed %s.\n", ms.WalletID)
	return nil
}

func runSessionsCleanup(cmd *cobra.Command, _ []string) error {
	cmdCtx := GetCmdContext(cmd)

	env, err := openSessionEnv(cmdCtx)
	if err != nil {
		return err
	}
	defer env.Close()

	removed := env.Svc.Cleanup()

	w := cmd.OutOrStdout()
	if cmdCtx.Fmt.Format() == output.FormatJSON {
		out(w, "{\"removed\": %d}\n", removed)
		return nil
	}
	out(w, "Removed %d expired session(s).\n", removed)
	return nil
}

// resolveSession finds a session by wallet id first, then by topic.
func resolveSession(svc SessionService, ref string) (session.ManagedSession, error) {
	for _, ms := range svc.Sessions() {
		if ms.WalletID == ref {
			return ms, nil
		}
	}
	if ms, ok := svc.Session(ref); ok {
		return ms, nil
	}
	return session.ManagedSession{}, moorerr.WithSuggestion(
		moorerr.WithDetails(moorerr.ErrSessionNotFound, map[string]string{"session": ref}),
		`list known sessions with "mooring sessions list"`,
	)
}

// sessionView is the JSON shape commands print for one session. The opaque
// transport blob is deliberately absent.
type sessionView struct {
	Topic           string          `json:"topic"`
	WalletID        string          `json:"walletId"`
	Kind            wallet.Kind     `json:"kind"`
	Address         string          `json:"address"`
	State           session.State   `json:"state"`
	Chain           wallet.ChainRef `json:"chain"`
	ConnectedAt     time.Time       `json:"connectedAt"`
	LastValidatedAt *time.Time      `json:"lastValidatedAt,omitempty"`
	ExpiresAt       *time.Time      `json:"expiresAt,omitempty"`
	PeerName        string          `json:"peerName,omitempty"`
}

func sessionPayload(ms session.ManagedSession) sessionView {
	view := sessionView{
		Topic:       ms.Topic,
		WalletID:    ms.WalletID,
		Kind:        ms.Kind,
		Address:     ms.Address,
		State:       ms.State,
		Chain:       ms.Chain,
		ConnectedAt: ms.ConnectedAt,
		ExpiresAt:   ms.ExpiresAt,
		PeerName:    ms.PeerName,
	}
	if !ms.LastValidatedAt.IsZero() {
		t := ms.LastValidatedAt
		view.LastValidatedAt = &t
	}
	return view
}

// displaySessionTable renders the session list as an aligned table.
func displaySessionTable(w io.Writer, sessions []session.ManagedSession) {
	now := time.Now()
	table := output.NewTable("WALLET ID", "KIND", "CHAIN", "STATE", "CONNECTED", "VALIDATED", "EXPIRES")
	for _, ms := range sessions {
		table.AddRow(
			ms.WalletID,
			ms.Kind.String(),
			ms.Chain.String(),
			ms.State.String(),
			formatWhen(ms.ConnectedAt),
			formatWhen(ms.LastValidatedAt),
			formatExpiry(&ms, now),
		)
	}
	_ = table.Render(w)
}

// displaySessionText renders one session as a labeled detail view.
func displaySessionText(w io.Writer, ms session.ManagedSession) {
	now := time.Now()
	out(w, "Wallet:     %s\n", ms.WalletID)
	out(w, "Kind:       %s\n", ms.Kind)
	out(w, "Address:    %s\n", ms.DisplayAddress())
	out(w, "Chain:      %s\n", ms.Chain)
	out(w, "State:      %s\n", output.PaintState(ms.State.String()))
	out(w, "Connected:  %s\n", formatWhen(ms.ConnectedAt))
	out(w, "Validated:  %s\n", formatWhen(ms.LastValidatedAt))
	out(w, "Expires:    %s\n", formatExpiry(&ms, now))
	if ms.PeerName != "" {
		out(w, "Peer:       %s\n", ms.PeerName)
	}
	out(w, "Topic:      %s\n", ms.Topic)
}

// formatWhen renders a timestamp for display, "never" for the zero value.
func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatExpiry renders the validity horizon relative to now.
func formatExpiry(ms *session.ManagedSession, now time.Time) string {
	if ms.ExpiresAt == nil {
		return "never"
	}
	if ms.IsExpired(now) {
		return "expired"
	}
	return "in " + formatDuration(ms.Remaining(now))
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	default:
		days := int(d.Hours()) / 24
		hours := int(d.Hours()) % 24
		if hours == 0 {
			return fmt.Sprintf("%dd", days)
		}
		return fmt.Sprintf("%dd%dh", days, hours)
	}
}
