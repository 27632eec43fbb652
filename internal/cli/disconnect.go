package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/akodra/mooring/internal/output"
)

// disconnectTimeout bounds the adapter teardown call.
const disconnectTimeout = 30 * time.Second

// disconnectCmd ends the active session.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect the active wallet",
	Long: `Disconnect the currently active wallet session.

Local session state is cleared even when the wallet side cannot be reached;
the command then reports the degraded teardown. With a connect attempt still
in flight, disconnect cancels it instead.`,
	Example: `  mooring disconnect`,
	Args:    cobra.NoArgs,
	RunE:    runDisconnect,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(disconnectCmd)
}

func runDisconnect(cmd *cobra.Command, _ []string) error {
	cmdCtx := GetCmdContext(cmd)

	env, err := openSessionEnv(cmdCtx)
	if err != nil {
		return err
	}
	defer env.Close()

	active, hadActive := env.Svc.Active()

	ctx, cancel := contextWithTimeout(cmd, disconnectTimeout)
	defer cancel()

	if err := env.Svc.Disconnect(ctx); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cmdCtx.Fmt.Format() == output.FormatJSON {
		payload := struct {
			Status   string `json:"status"`
			WalletID string `json:"walletId,omitempty"`
			Topic    string `json:"topic,omitempty"`
		}{Status: "disconnected"}
		if hadActive {
			payload.WalletID = active.WalletID
			payload.Topic = active.Topic
		}
		return writeJSON(w, payload)
	}

	if hadActive {
		out(w, "Disconnected %s.\n", active.WalletID)
	} else {
		outln(w, "Canceled the in-flight connect attempt.")
	}
	return nil
}
