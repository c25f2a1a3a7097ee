package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.EqualValues(t, 5000, cfg.Watchdog.TimeoutMillis)
	require.Equal(t, 2, cfg.Watchdog.ResetThreshold)
	require.Equal(t, 2*time.Second, cfg.Feeders.HeartbeatInterval)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "seatguard.yaml", `
watchdog:
  name: bench
  timeoutMillis: 3000
  tickPeriod: 50ms
  paused: true
seats:
  capacity: 4
  silent: true
feeders:
  probeURL: http://127.0.0.1:9/health
`)
	t.Setenv("SEATGUARD_WATCHDOG_TIMEOUT_MS", "4000")
	t.Setenv("SEATGUARD_SIMULATE", "yes")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, cfg.Path)
	require.Equal(t, "bench", cfg.Watchdog.Name)
	require.EqualValues(t, 4000, cfg.Watchdog.TimeoutMillis)
	require.Equal(t, 50*time.Millisecond, cfg.Watchdog.TickPeriod)
	require.Equal(t, 100*time.Millisecond, cfg.Watchdog.PollInterval)
	require.True(t, cfg.Watchdog.Paused)
	require.Equal(t, 4, cfg.Seats.Capacity)
	require.True(t, cfg.Seats.Silent)
	require.True(t, cfg.Feeders.Simulate)
	require.Equal(t, "http://127.0.0.1:9/health", cfg.Feeders.ProbeURL)
}

func TestLoadPathFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "c.yaml", "server:\n  addr: \":0\"\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":0", cfg.Server.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SEATGUARD_LOG_LEVEL=debug\n"), 0o644))
	t.Setenv("SEATGUARD_LOG_LEVEL", "")
	os.Unsetenv("SEATGUARD_LOG_LEVEL")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SEATGUARD_RESET_THRESHOLD", "many")
	t.Setenv("SEATGUARD_MDNS", "perhaps")

	_, err := Load("")
	require.ErrorContains(t, err, "SEATGUARD_RESET_THRESHOLD")
	require.ErrorContains(t, err, "SEATGUARD_MDNS")
}

func TestValidateJoinsProblems(t *testing.T) {
	cfg := Default()
	cfg.Watchdog.TimeoutMillis = 0
	cfg.Watchdog.ResetThreshold = 0
	cfg.Seats.Capacity = 0
	cfg.Logging.Level = "loud"
	cfg.Feeders.ProbeURL = "not a url"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"timeoutMillis", "resetThreshold", "seats.capacity", "logging.level", "probeURL"} {
		require.ErrorContains(t, err, want)
	}
}

func TestValidateHeartbeatShorterThanTimeout(t *testing.T) {
	cfg := Default()
	cfg.Feeders.HeartbeatInterval = 6 * time.Second
	require.ErrorContains(t, cfg.Validate(), "heartbeatInterval")
}
