// Package logging constructs the application logger from configuration.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/akodra/mooring/internal/config"
)

// New builds a zerolog.Logger from the logging configuration.
// Format "console" writes human-readable lines; anything else emits JSON.
// When cfg.File is set the log goes there, otherwise to stderr.
// The returned closer is non-nil when a file was opened.
func New(cfg config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	level := ParseLevel(cfg.Level)

	var sink io.Writer = os.Stderr
	var closer io.Closer
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- log path from config
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		sink = f
		closer = f
	}

	if strings.EqualFold(cfg.Format, "console") {
		sink = zerolog.ConsoleWriter{
			Out:        sink,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(sink).Level(level).With().Timestamp().Str("app", "mooring").Logger()
	return logger, closer, nil
}

// ParseLevel maps a config level string onto a zerolog level.
// Unknown values fall back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Nop returns a disabled logger for tests and optional components.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
