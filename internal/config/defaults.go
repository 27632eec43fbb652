package config

// Default resilience tuning. Reconnect attempts back off from half a second
// to eight seconds; the breaker opens after five straight failures and probes
// again after thirty seconds.
const (
	DefaultBackoffInitialMS   = 500
	DefaultBackoffMaxMS       = 8000
	DefaultBackoffMultiplier  = 2.0
	DefaultBackoffJitter      = 0.3
	DefaultMaxRetries         = 3
	DefaultFailureThreshold   = 5
	DefaultResetTimeoutSecs   = 30
	DefaultHalfOpenSuccesses  = 2
	DefaultWatchdogInterval   = 30
	DefaultConnectTimeoutSecs = 60
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.mooring",
		Storage: StorageConfig{
			Backend: "file",
			Encrypt: true,
		},
		Connect: ConnectConfig{
			TimeoutSeconds:    DefaultConnectTimeoutSecs,
			AttemptsPerMinute: 6,
			AttemptBurst:      3,
			Transport:         "loopback",
		},
		Resilience: ResilienceConfig{
			Backoff: BackoffConfig{
				InitialDelayMS: DefaultBackoffInitialMS,
				MaxDelayMS:     DefaultBackoffMaxMS,
				Multiplier:     DefaultBackoffMultiplier,
				JitterFactor:   DefaultBackoffJitter,
				MaxRetries:     DefaultMaxRetries,
			},
			Circuit: CircuitConfig{
				FailureThreshold:  DefaultFailureThreshold,
				ResetTimeoutSecs:  DefaultResetTimeoutSecs,
				HalfOpenSuccesses: DefaultHalfOpenSuccesses,
			},
		},
		Watchdog: WatchdogConfig{
			IntervalSeconds: DefaultWatchdogInterval,
			SweepOnStart:    true,
		},
		Crypto: CryptoConfig{
			Offload: true,
			Workers: 2,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   "",
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9641",
		},
	}
}
