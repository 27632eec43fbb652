package cli

import (
	"github.com/spf13/cobra"

	"github.com/akodra/mooring/internal/output"
	"github.com/akodra/mooring/internal/version"
)

// versionCmd prints build information.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print version information",
	Example: `  mooring version`,
	Args:    cobra.NoArgs,
	RunE:    runVersion,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	cmdCtx := GetCmdContext(cmd)
	w := cmd.OutOrStdout()

	if cmdCtx.Fmt.Format() == output.FormatJSON {
		return writeJSON(w, version.Get())
	}
	out(w, "mooring %s\n", version.String())
	info := version.Get()
	out(w, "go:       %s\n", info.GoVersion)
	out(w, "platform: %s\n", info.Platform)
	return nil
}
