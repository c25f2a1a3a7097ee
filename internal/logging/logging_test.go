package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbvlabs/seatguard/internal/config"
)

func TestNewWritesToStdout(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(config.LoggingConfig{Level: "warn", NoColor: true}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("watchdog_strike", "strikes", 1)

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "watchdog_strike")
	require.Contains(t, out, "strikes=1")
}

func TestNewRotatesIntoDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer

	logger, closer, err := New(config.LoggingConfig{Level: "debug", Dir: dir}, &buf)
	require.NoError(t, err)
	logger.Debug("seat_updated", "id", 1)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	require.Contains(t, string(data), "seat_updated")
	require.Contains(t, buf.String(), "file_logging_enabled")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Level: "chatty"}, &bytes.Buffer{})
	require.Error(t, err)
}
