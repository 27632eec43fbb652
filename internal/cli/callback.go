package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/akodra/mooring/internal/output"
)

// callbackTimeout bounds the routing of one callback URI.
const callbackTimeout = 10 * time.Second

// callbackCmd routes a wallet app callback URI.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var callbackCmd = &cobra.Command{
	Use:   "callback <uri>",
	Short: "Route a wallet app callback",
	Long: `Route an app-to-app callback URI to the connection kind it belongs to.

The scheme selects the kind. Relay callbacks carry their topic and action
in the clear; direct-key callbacks arrive sealed and are opened with the
app key before routing. Unroutable or unverifiable callbacks are dropped
with an error.`,
	Example: `  mooring callback "mooring-wc://callback?topic=a1b2c3&action=disconnect"
  mooring callback "mooring-phantom://callback?phantom_encryption_public_key=...&nonce=...&data=..."`,
	Args: cobra.ExactArgs(1),
	RunE: runCallback,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(callbackCmd)
}

func runCallback(cmd *cobra.Command, args []string) error {
	cmdCtx := GetCmdContext(cmd)

	env, err := openSessionEnv(cmdCtx)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := contextWithTimeout(cmd, callbackTimeout)
	defer cancel()

	result, err := env.Svc.RouteCallback(ctx, args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cmdCtx.Fmt.Format() == output.FormatJSON {
		payload := struct {
			Kind   string `json:"kind"`
			Topic  string `json:"topic"`
			Action string `json:"action"`
		}{Kind: result.Kind.String(), Topic: result.Topic, Action: result.Action}
		return writeJSON(w, payload)
	}
	out(w, "Routed %s callback for topic %s (%s).\n", result.Action, result.Topic, result.Kind)
	return nil
}
