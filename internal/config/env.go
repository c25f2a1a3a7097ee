package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func (c *Config) applyEnv() error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	c.Watchdog.Name = getEnvString("SEATGUARD_WATCHDOG_NAME", c.Watchdog.Name)
	collect(envUint32("SEATGUARD_WATCHDOG_TIMEOUT_MS", &c.Watchdog.TimeoutMillis))
	collect(envDuration("SEATGUARD_WATCHDOG_TICK", &c.Watchdog.TickPeriod))
	collect(envDuration("SEATGUARD_WATCHDOG_POLL", &c.Watchdog.PollInterval))
	collect(envInt("SEATGUARD_RESET_THRESHOLD", &c.Watchdog.ResetThreshold))
	collect(envBool("SEATGUARD_WATCHDOG_PAUSED", &c.Watchdog.Paused))

	collect(envInt("SEATGUARD_SEATS_CAPACITY", &c.Seats.Capacity))
	collect(envBool("SEATGUARD_SEATS_SILENT", &c.Seats.Silent))

	collect(envBool("SEATGUARD_HEARTBEAT", &c.Feeders.Heartbeat))
	collect(envDuration("SEATGUARD_HEARTBEAT_INTERVAL", &c.Feeders.HeartbeatInterval))
	c.Feeders.ProbeURL = getEnvString("SEATGUARD_PROBE_URL", c.Feeders.ProbeURL)
	collect(envBool("SEATGUARD_SIMULATE", &c.Feeders.Simulate))

	if v, ok := os.LookupEnv("SEATGUARD_HTTP_ADDR"); ok {
		c.Server.Addr = strings.TrimSpace(v)
	}
	collect(envBool("SEATGUARD_MDNS", &c.Discovery.Enabled))

	c.Logging.Level = getEnvString("SEATGUARD_LOG_LEVEL", c.Logging.Level)
	c.Logging.Dir = getEnvString("SEATGUARD_LOG_DIR", c.Logging.Dir)
	collect(envBool("SEATGUARD_LOG_NO_COLOR", &c.Logging.NoColor))

	c.Incidents.Path = getEnvString("SEATGUARD_INCIDENT_LOG", c.Incidents.Path)

	return errors.Join(errs...)
}

func getEnvString(key string, def string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	return value
}

func envInt(key string, dst *int) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func envUint32(key string, dst *uint32) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = uint32(parsed)
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func envBool(key string, dst *bool) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "y", "on":
		*dst = true
	case "false", "0", "no", "n", "off":
		*dst = false
	default:
		return fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	return nil
}
