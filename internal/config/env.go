package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHome            = "MOORING_HOME"
	EnvStoreBackend    = "MOORING_STORE_BACKEND"
	EnvStoreEncrypt    = "MOORING_STORE_ENCRYPT"
	EnvTransport       = "MOORING_TRANSPORT"
	EnvOutputFormat    = "MOORING_OUTPUT_FORMAT"
	EnvVerbose         = "MOORING_VERBOSE"
	EnvLogLevel        = "MOORING_LOG_LEVEL"
	EnvLogFormat       = "MOORING_LOG_FORMAT"
	EnvNoColor         = "NO_COLOR"
	EnvWatchInterval   = "MOORING_WATCH_INTERVAL"
	EnvCryptoWorkers   = "MOORING_CRYPTO_WORKERS"
	EnvTelemetryListen = "MOORING_TELEMETRY_LISTEN"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvStoreBackend); v != "" {
		cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvStoreEncrypt); v != "" {
		cfg.Storage.Encrypt = parseBool(v)
	}

	if v := os.Getenv(EnvTransport); v != "" {
		cfg.Connect.Transport = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}

	// MOORING_WATCH_INTERVAL sets the watchdog sweep interval in seconds
	if v := os.Getenv(EnvWatchInterval); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Watchdog.IntervalSeconds = secs
		}
	}

	// MOORING_CRYPTO_WORKERS sets the oracle worker count; 0 disables offload
	if v := os.Getenv(EnvCryptoWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Crypto.Workers = n
			cfg.Crypto.Offload = n > 0
		}
	}

	if v := os.Getenv(EnvTelemetryListen); v != "" {
		cfg.Telemetry.Listen = strings.TrimSpace(v)
		cfg.Telemetry.Enabled = true
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}
