package feeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const DefaultHeartbeatInterval = 2 * time.Second

// Heartbeat feeds unconditionally every interval.
type Heartbeat struct {
	wd       Feeder
	interval time.Duration
	log      *slog.Logger
	logEvery rate.Sometimes
}

func NewHeartbeat(wd Feeder, interval time.Duration, logger *slog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{
		wd:       wd,
		interval: interval,
		log:      logger.With("worker", "heartbeat"),
		logEvery: rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

func (h *Heartbeat) Name() string { return "heartbeat" }

func (h *Heartbeat) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := h.wd.Feed(); err != nil {
				return fmt.Errorf("heartbeat feed: %w", err)
			}
			h.logEvery.Do(func() {
				h.log.Debug("watchdog_fed", "interval", h.interval)
			})
		}
	}
}
