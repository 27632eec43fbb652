package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// contextWithTimeout derives a deadline context for one command run,
// falling back to Background when cobra carries no context.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	if base := cmd.Context(); base != nil {
		return context.WithTimeout(base, d)
	}
	return context.WithTimeout(context.Background(), d)
}
