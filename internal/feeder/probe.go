package feeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultProbeInterval = 500 * time.Millisecond
	defaultProbeTimeout  = 500 * time.Millisecond
)

// HealthChecker issues HEAD requests against a URL.
type HealthChecker struct {
	url    string
	client *http.Client
}

func NewHealthChecker(url string, timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &HealthChecker{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// IsHealthy reports whether the URL answered with a non-5xx status.
func (h *HealthChecker) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.url, nil)
	if err != nil {
		return false
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}

// WaitForHealthy polls until the URL is healthy or ctx ends.
func (h *HealthChecker) WaitForHealthy(ctx context.Context, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if h.IsHealthy(ctx) {
				return nil
			}
		}
	}
}

// Probe feeds only while its health check passes, so a lost upstream
// starves the watchdog.
type Probe struct {
	wd       Feeder
	checker  *HealthChecker
	interval time.Duration
	log      *slog.Logger
}

func NewProbe(wd Feeder, checker *HealthChecker, interval time.Duration, logger *slog.Logger) *Probe {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		wd:       wd,
		checker:  checker,
		interval: interval,
		log:      logger.With("worker", "probe", "url", checker.url),
	}
}

func (p *Probe) Name() string { return "probe" }

func (p *Probe) Run(ctx context.Context) error {
	healthy := true
	for {
		if err := p.checker.WaitForHealthy(ctx, p.interval); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return err
		}
		if !healthy {
			p.log.Info("probe_recovered")
		}
		healthy = true

		if err := p.wd.Feed(); err != nil {
			return fmt.Errorf("probe feed: %w", err)
		}

		// Stay in the fed state until the next check fails.
		for healthy {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.interval):
			}
			if !p.checker.IsHealthy(ctx) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.log.Warn("probe_unhealthy")
				healthy = false
				break
			}
			if err := p.wd.Feed(); err != nil {
				return fmt.Errorf("probe feed: %w", err)
			}
		}
	}
}
