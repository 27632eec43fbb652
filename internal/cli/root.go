// Package cli implements the mooring command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/akodra/mooring/internal/config"
	"github.com/akodra/mooring/internal/logging"
	"github.com/akodra/mooring/internal/output"
	moorerr "github.com/akodra/mooring/pkg/errors"
)

var (
	// Global flags
	homeDir string
	cfgFile string
	jsonOut bool
	verbose bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	appLog    zerolog.Logger
	logCloser io.Closer
	formatter *output.Formatter
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mooring",
	Short: "Wallet connection lifecycle manager",
	Long: `Mooring keeps wallet connections alive across restarts and transport drops.

It drives connect attempts with retry and circuit-breaker protection, tracks
every session in a persistent registry, and runs a watchdog that reconnects
stale sessions and removes expired ones.

Example:
  mooring connect reown --chain-id 1 --qr
  mooring sessions list
  mooring watch --once`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initGlobals(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		// Format and print error
		if formatter != nil {
			_ = output.FormatError(os.Stderr, err, formatter.Format())
		} else {
			_ = output.FormatError(os.Stderr, err, output.FormatText)
		}
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return moorerr.ExitCode(err)
}

// initGlobals initializes configuration, logger, and formatter, and hangs
// the command context off cmd for the subcommand about to run.
func initGlobals(cmd *cobra.Command) error {
	// Determine home directory
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	// Load or create config. An explicit --config that cannot be read is an
	// error; the implicit per-home path falls back to defaults.
	path := cfgFile
	if path == "" {
		path = config.Path(home)
	}
	var err error
	cfg, err = config.Load(path)
	if err != nil {
		if cfgFile != "" {
			return moorerr.Wrap(moorerr.ErrConfigNotFound, "loading %s", cfgFile)
		}
		cfg = config.Defaults()
	}
	cfg.Home = home

	// Apply environment variable overrides
	config.ApplyEnvironment(cfg)

	// Override with command-line flags
	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if jsonOut {
		cfg.Output.DefaultFormat = "json"
	}
	expandHome(cfg)

	// Initialize logger
	appLog, logCloser, err = logging.New(cfg.Logging)
	if err != nil {
		// Fall back to a disabled logger when the log file cannot be opened
		appLog = logging.Nop()
		logCloser = nil
	}
	if !cfg.Output.Verbose && cfg.Logging.File == "" {
		// Without --verbose, command output stays clean of log lines.
		appLog = appLog.Level(zerolog.ErrorLevel)
	}

	// Initialize formatter
	explicitFormat := output.ParseFormat(cfg.Output.DefaultFormat)
	detectedFormat := output.DetectFormat(os.Stdout, explicitFormat)
	formatter = output.NewFormatter(detectedFormat, os.Stdout)
	output.ApplyColorMode(output.ParseColorMode(cfg.Output.Color))

	SetCmdContext(cmd, NewCommandContext(cfg, appLog, formatter))
	return nil
}

// expandHome resolves a leading ~/ in the home path so derived paths like
// the store directory land under the user's real home.
func expandHome(cfg *config.Config) {
	if !strings.HasPrefix(cfg.Home, "~/") {
		return
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return
	}
	cfg.Home = filepath.Join(userHome, cfg.Home[2:])
}

// cleanup releases resources.
func cleanup() {
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

// Config returns the global configuration.
func Config() *config.Config {
	return cfg
}

// Formatter returns the global output formatter.
func Formatter() *output.Formatter {
	return formatter
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "mooring data directory (default: ~/.mooring)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: <home>/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit JSON output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}
