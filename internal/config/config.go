// Package config provides configuration management for Mooring.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Home       string           `yaml:"home"`
	Storage    StorageConfig    `yaml:"storage"`
	Connect    ConnectConfig    `yaml:"connect"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Watchdog   WatchdogConfig   `yaml:"watchdog"`
	Crypto     CryptoConfig     `yaml:"crypto"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// StorageConfig defines session snapshot storage settings.
type StorageConfig struct {
	Backend string `yaml:"backend"` // file, sqlite, memory
	Encrypt bool   `yaml:"encrypt"`
}

// ConnectConfig defines connection sequencing settings.
type ConnectConfig struct {
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	AttemptsPerMinute  int    `yaml:"attempts_per_minute"`
	AttemptBurst       int    `yaml:"attempt_burst"`
	Transport          string `yaml:"transport"`
	LoopbackFailures   int    `yaml:"loopback_failures,omitempty"`
	LoopbackTTLMinutes int    `yaml:"loopback_ttl_minutes,omitempty"`
}

// ResilienceConfig groups retry and circuit breaker settings.
type ResilienceConfig struct {
	Backoff BackoffConfig `yaml:"backoff"`
	Circuit CircuitConfig `yaml:"circuit"`
}

// BackoffConfig defines the retry delay schedule.
type BackoffConfig struct {
	InitialDelayMS int     `yaml:"initial_delay_ms"`
	MaxDelayMS     int     `yaml:"max_delay_ms"`
	Multiplier     float64 `yaml:"multiplier"`
	JitterFactor   float64 `yaml:"jitter_factor"`
	MaxRetries     int     `yaml:"max_retries"`
}

// CircuitConfig defines circuit breaker thresholds.
type CircuitConfig struct {
	FailureThreshold  int `yaml:"failure_threshold"`
	ResetTimeoutSecs  int `yaml:"reset_timeout_seconds"`
	HalfOpenSuccesses int `yaml:"half_open_successes"`
}

// WatchdogConfig defines the reconnection watchdog settings.
type WatchdogConfig struct {
	IntervalSeconds int  `yaml:"interval_seconds"`
	SweepOnStart    bool `yaml:"sweep_on_start"`
}

// CryptoConfig defines crypto oracle offloading settings.
type CryptoConfig struct {
	Offload bool `yaml:"offload"`
	Workers int  `yaml:"workers"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console, json
	File   string `yaml:"file"`
}

// TelemetryConfig defines metrics exposure settings.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// GetHome returns the mooring home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// StorePath returns the directory for the snapshot store.
func (c *Config) StorePath() string {
	return filepath.Join(c.Home, "store")
}

// ConnectTimeout returns the per-connect timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Connect.TimeoutSeconds) * time.Second
}

// BackoffInitialDelay returns the first retry delay.
func (c *Config) BackoffInitialDelay() time.Duration {
	return time.Duration(c.Resilience.Backoff.InitialDelayMS) * time.Millisecond
}

// BackoffMaxDelay returns the retry delay cap.
func (c *Config) BackoffMaxDelay() time.Duration {
	return time.Duration(c.Resilience.Backoff.MaxDelayMS) * time.Millisecond
}

// CircuitResetTimeout returns the open-to-half-open wait.
func (c *Config) CircuitResetTimeout() time.Duration {
	return time.Duration(c.Resilience.Circuit.ResetTimeoutSecs) * time.Second
}

// WatchdogInterval returns the periodic sweep interval.
func (c *Config) WatchdogInterval() time.Duration {
	return time.Duration(c.Watchdog.IntervalSeconds) * time.Second
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default mooring home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mooring"
	}
	return filepath.Join(home, ".mooring")
}
