package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akodra/mooring/internal/config"
	"github.com/akodra/mooring/internal/logging"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"  debug  ", zerolog.DebugLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, logging.ParseLevel(tc.input))
		})
	}
}

func TestNew_ToFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mooring.log")

	logger, closer, err := logging.New(config.LoggingConfig{
		Level:  "debug",
		Format: "json",
		File:   path,
	})
	require.NoError(t, err)
	require.NotNil(t, closer)

	logger.Info().Str("topic", "t1").Msg("session validated")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path) //nolint:gosec // G304: Test path from t.TempDir()
	require.NoError(t, err)
	assert.Contains(t, string(data), "session validated")
	assert.Contains(t, string(data), `"topic":"t1"`)
}

func TestNew_BadFilePath(t *testing.T) {
	t.Parallel()
	_, _, err := logging.New(config.LoggingConfig{
		Level: "info",
		File:  filepath.Join(t.TempDir(), "missing", "dir", "x.log"),
	})
	assert.Error(t, err)
}

func TestNew_StderrConsole(t *testing.T) {
	t.Parallel()
	logger, closer, err := logging.New(config.LoggingConfig{Level: "error", Format: "console"})
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.Equal(t, zerolog.ErrorLevel, logger.GetLevel())
}
