// Package config loads seatguard settings from defaults, an optional YAML
// file and SEATGUARD_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	Watchdog  WatchdogConfig  `yaml:"watchdog"`
	Seats     SeatsConfig     `yaml:"seats"`
	Feeders   FeedersConfig   `yaml:"feeders"`
	Server    ServerConfig    `yaml:"server"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
	Incidents IncidentConfig  `yaml:"incidents"`

	// Path is the YAML file the config was read from, if any.
	Path string `yaml:"-"`
}

type WatchdogConfig struct {
	Name           string        `yaml:"name"`
	TimeoutMillis  uint32        `yaml:"timeoutMillis"`
	TickPeriod     time.Duration `yaml:"tickPeriod"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	ResetThreshold int           `yaml:"resetThreshold"`
	// Paused keeps the watchdog stopped. It can be flipped at runtime.
	Paused       bool `yaml:"paused"`
	InitAttempts int  `yaml:"initAttempts"`
}

type SeatsConfig struct {
	Capacity int  `yaml:"capacity"`
	Silent   bool `yaml:"silent"`
}

type FeedersConfig struct {
	Heartbeat         bool          `yaml:"heartbeat"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	ProbeURL          string        `yaml:"probeURL"`
	ProbeInterval     time.Duration `yaml:"probeInterval"`
	Simulate          bool          `yaml:"simulate"`
	SimulateInterval  time.Duration `yaml:"simulateInterval"`
}

type ServerConfig struct {
	// Addr is the status server listen address; empty disables it.
	Addr string `yaml:"addr"`
}

type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Dir     string `yaml:"dir"`
	NoColor bool   `yaml:"noColor"`
}

type IncidentConfig struct {
	Path string `yaml:"path"`
}

func Default() *Config {
	return &Config{
		Watchdog: WatchdogConfig{
			Name:           "soft_wdt",
			TimeoutMillis:  5000,
			TickPeriod:     100 * time.Millisecond,
			PollInterval:   100 * time.Millisecond,
			ResetThreshold: 2,
			InitAttempts:   5,
		},
		Seats: SeatsConfig{
			Capacity: 2,
		},
		Feeders: FeedersConfig{
			Heartbeat:         true,
			HeartbeatInterval: 2 * time.Second,
			ProbeInterval:     500 * time.Millisecond,
			SimulateInterval:  2 * time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Discovery: DiscoveryConfig{
			Instance: "seatguard",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Incidents: IncidentConfig{
			Path: "seatguard-incidents.cbor",
		},
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	var errs []error
	if strings.TrimSpace(c.Watchdog.Name) == "" {
		errs = append(errs, errors.New("watchdog.name must not be empty"))
	}
	if c.Watchdog.TimeoutMillis == 0 {
		errs = append(errs, errors.New("watchdog.timeoutMillis must be positive"))
	}
	if c.Watchdog.TickPeriod <= 0 {
		errs = append(errs, fmt.Errorf("watchdog.tickPeriod must be positive, got %s", c.Watchdog.TickPeriod))
	}
	if c.Watchdog.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("watchdog.pollInterval must be positive, got %s", c.Watchdog.PollInterval))
	}
	if c.Watchdog.ResetThreshold < 1 {
		errs = append(errs, fmt.Errorf("watchdog.resetThreshold must be at least 1, got %d", c.Watchdog.ResetThreshold))
	}
	if c.Watchdog.InitAttempts < 1 {
		errs = append(errs, fmt.Errorf("watchdog.initAttempts must be at least 1, got %d", c.Watchdog.InitAttempts))
	}
	if c.Seats.Capacity < 1 || c.Seats.Capacity > 255 {
		errs = append(errs, fmt.Errorf("seats.capacity must be between 1 and 255, got %d", c.Seats.Capacity))
	}
	if c.Feeders.Heartbeat && c.Feeders.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("feeders.heartbeatInterval must be positive"))
	}
	if c.Feeders.Heartbeat && c.Feeders.HeartbeatInterval >= time.Duration(c.Watchdog.TimeoutMillis)*time.Millisecond {
		errs = append(errs, fmt.Errorf("feeders.heartbeatInterval %s must be shorter than the watchdog timeout", c.Feeders.HeartbeatInterval))
	}
	if c.Feeders.ProbeURL != "" {
		if u, err := url.Parse(c.Feeders.ProbeURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("feeders.probeURL %q is not an absolute URL", c.Feeders.ProbeURL))
		}
		if c.Feeders.ProbeInterval <= 0 {
			errs = append(errs, errors.New("feeders.probeInterval must be positive"))
		}
	}
	if c.Feeders.Simulate && c.Feeders.SimulateInterval <= 0 {
		errs = append(errs, errors.New("feeders.simulateInterval must be positive"))
	}
	if c.Discovery.Enabled && c.Server.Addr == "" {
		errs = append(errs, errors.New("discovery needs server.addr"))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level: %w", err)
	}
	return l, nil
}
