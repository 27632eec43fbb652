package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// walkCommands applies fn to cmd and, depth-first, to every command
// registered beneath it.
func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, sub := range cmd.Commands() {
		walkCommands(sub, fn)
	}
}

// enrichParentLong rebuilds the trailing subcommand list on a group
// command's Long text so its help never drifts from the subcommands
// actually registered.
func enrichParentLong(cmd *cobra.Command) {
	subs := cmd.Commands()
	if len(subs) == 0 {
		return
	}

	width := 0
	for _, sub := range subs {
		if sub.IsAvailableCommand() && len(sub.Name()) > width {
			width = len(sub.Name())
		}
	}

	var sb strings.Builder
	sb.WriteString(cmd.Long)
	sb.WriteString("\n\nSubcommands:\n")
	for _, sub := range subs {
		if !sub.IsAvailableCommand() {
			continue
		}
		fmt.Fprintf(&sb, "  %-*s  %s\n", width, sub.Name(), sub.Short)
	}

	cmd.Long = sb.String()
}
