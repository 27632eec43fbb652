package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/akodra/mooring/internal/output"
	"github.com/akodra/mooring/internal/telemetry"
	"github.com/akodra/mooring/internal/watchdog"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

// watchReconnectTimeout bounds each automatic reconnect attempt inside a sweep.
const watchReconnectTimeout = 30 * time.Second

// Watch command flags.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// watchInterval overrides the configured sweep cadence.
	watchInterval time.Duration

	// watchOnce runs a single sweep and exits instead of looping.
	watchOnce bool

	// watchListen serves metrics and health endpoints while watching.
	watchListen string
)

// watchCmd runs the session watchdog.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the session watchdog",
	Long: `Run the supervisory loop that keeps sessions healthy.

Each sweep reconciles the registry against the transport's live topics,
marks vanished sessions stale, gives every stale session one automatic
reconnect attempt, and removes expired sessions. Sessions still stale
after their attempt are reported for manual reconnection.

SIGUSR1 forces an immediate sweep, the same way a mobile app sweeps on
returning to the foreground.`,
	Example: `  mooring watch
  mooring watch --once
  mooring watch --interval 10s --listen 127.0.0.1:9464`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "sweep interval (default from configuration)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "run a single sweep and exit")
	watchCmd.Flags().StringVar(&watchListen, "listen", "", "serve metrics and health on this address while watching")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cmdCtx := GetCmdContext(cmd)

	env, err := openSessionEnv(cmdCtx)
	if err != nil {
		return err
	}
	defer env.Close()

	cfg := cmdCtx.Cfg
	interval := cfg.WatchdogInterval()
	if watchInterval > 0 {
		interval = watchInterval
	}

	// Sweep activity is this command's output, so info logging stays on
	// even without --verbose.
	log := cmdCtx.Log.Level(zerolog.InfoLevel)

	wd, err := watchdog.New(watchdog.Config{
		Interval:         interval,
		ReconnectTimeout: watchReconnectTimeout,
		SweepOnStart:     cfg.Watchdog.SweepOnStart,
	}, env.Svc, env.Registry, env.Snapshots, env.Rec, log)
	if err != nil {
		return err
	}

	if watchOnce {
		report, err := wd.Sweep(cmd.Context(), watchdog.TriggerManual)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if cmdCtx.Fmt.Format() == output.FormatJSON {
			return writeJSON(w, report)
		}
		displaySweepReport(w, report)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-usr1:
				wd.Notify(watchdog.TriggerForeground)
			}
		}
	}()

	listen := watchListen
	if listen == "" && cfg.Telemetry.Enabled {
		listen = cfg.Telemetry.Listen
	}
	if listen != "" {
		go func() {
			if err := telemetry.Serve(ctx, listen, log); err != nil {
				log.Error().Err(err).Msg("telemetry listener failed")
			}
		}()
	}

	w := cmd.OutOrStdout()
	out(w, "Watching sessions every %s. Press Ctrl+C to stop.\n", interval)
	outln(w, "Send SIGUSR1 to force an immediate sweep.")

	if err := wd.Run(ctx); err != nil && !moorerr.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// displaySweepReport renders one sweep result as labeled text.
func displaySweepReport(w io.Writer, report watchdog.SweepReport) {
	out(w, "Sweep complete in %s.\n", report.Duration.Round(time.Millisecond))
	out(w, "Live topics:   %d\n", report.Live)
	out(w, "Checked:       %d\n", report.Checked)
	out(w, "Marked stale:  %d\n", report.MarkedStale)
	if len(report.Reconnected) > 0 {
		out(w, "Reconnected:   %s\n", strings.Join(report.Reconnected, ", "))
	}
	if len(report.NeedsManualReconnect) > 0 {
		outln(w, "Needs manual reconnect:")
		for _, topic := range report.NeedsManualReconnect {
			out(w, "  %s\n", topic)
		}
	}
	out(w, "Removed:       %d expired\n", report.Removed)
}
