package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// completionCmd generates shell completion scripts.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate a completion script for mooring and print it to stdout.

Bash:
  $ source <(mooring completion bash)

  # Install permanently (Linux):
  $ mooring completion bash > /etc/bash_completion.d/mooring
  # Install permanently (macOS, Homebrew bash-completion):
  $ mooring completion bash > $(brew --prefix)/etc/bash_completion.d/mooring

Zsh:
  # Enable completion support once if your environment lacks it:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # Install the script on your fpath and start a new shell:
  $ mooring completion zsh > "${fpath[1]}/_mooring"

Fish:
  $ mooring completion fish | source

  # Install permanently:
  $ mooring completion fish > ~/.config/fish/completions/mooring.fish

PowerShell:
  PS> mooring completion powershell | Out-String | Invoke-Expression

  # Install permanently by sourcing the script from your profile:
  PS> mooring completion powershell > mooring.ps1
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompletion(cmd.Root(), args[0], os.Stdout)
	},
}

// runCompletion writes the named shell's completion script to w. Shell
// names are validated by the command's Args before this runs.
func runCompletion(root *cobra.Command, shell string, w io.Writer) error {
	switch shell {
	case "bash":
		return root.GenBashCompletion(w)
	case "zsh":
		return root.GenZshCompletion(w)
	case "fish":
		return root.GenFishCompletion(w, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(w)
	}
	return nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(completionCmd)
}
