// Package app wires the watchdog, the seat table and their surfaces into
// one running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mbvlabs/seatguard/internal/config"
	"github.com/mbvlabs/seatguard/internal/console"
	"github.com/mbvlabs/seatguard/internal/discovery"
	"github.com/mbvlabs/seatguard/internal/feeder"
	"github.com/mbvlabs/seatguard/internal/incident"
	"github.com/mbvlabs/seatguard/internal/notify"
	"github.com/mbvlabs/seatguard/internal/seats"
	"github.com/mbvlabs/seatguard/internal/server"
	"github.com/mbvlabs/seatguard/internal/watchdog"
)

type Options struct {
	Version string

	// Platform overrides the watchdog runtime platform.
	Platform watchdog.Platform

	// Recover replaces the process reset after an escalation has been
	// recorded.
	Recover watchdog.RecoveryFunc
}

type App struct {
	cfg     *config.Config
	log     *slog.Logger
	version string
	recover watchdog.RecoveryFunc

	wd          *watchdog.Watchdog
	table       *seats.Table
	broadcaster *notify.Broadcaster
	incidents   *incident.Log
	server      *server.Server

	mu     sync.Mutex
	paused bool

	closeOnce sync.Once
	closeErr  error
}

// New builds every component and creates the watchdog. The watchdog is not
// started until Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		cfg:         cfg,
		log:         logger,
		version:     opts.Version,
		recover:     opts.Recover,
		table:       seats.NewTable(cfg.Seats.Capacity, logger.With("component", "seats")),
		broadcaster: notify.NewBroadcaster(),
		paused:      cfg.Watchdog.Paused,
	}
	a.table.SetSilent(cfg.Seats.Silent)
	a.table.Subscribe(func(seat seats.Seat) {
		a.broadcaster.Publish(notify.KindSeat, seat)
	})

	if path := cfg.Incidents.Path; path != "" {
		a.reportPreviousReset(path)
		log, err := incident.Open(path)
		if err != nil {
			return nil, err
		}
		a.incidents = log
	}

	wopts := []watchdog.Option{
		watchdog.WithLogger(logger),
		watchdog.WithTickPeriod(cfg.Watchdog.TickPeriod),
		watchdog.WithPollInterval(cfg.Watchdog.PollInterval),
		watchdog.WithResetThreshold(cfg.Watchdog.ResetThreshold),
		watchdog.WithEventHook(func(evt watchdog.Event) {
			a.broadcaster.Publish(notify.KindWatchdog, evt)
		}),
	}
	if opts.Platform != nil {
		wopts = append(wopts, watchdog.WithPlatform(opts.Platform))
	}

	wd, err := initWatchdog(ctx, cfg.Watchdog, a.onEscalation, logger, wopts...)
	if err != nil {
		if a.incidents != nil {
			a.incidents.Close()
		}
		return nil, err
	}
	a.wd = wd

	if cfg.Server.Addr != "" {
		a.server = server.New(server.Config{
			Addr:        cfg.Server.Addr,
			Watchdog:    wd,
			Seats:       a.table,
			Broadcaster: a.broadcaster,
			Logger:      logger,
		})
	}
	return a, nil
}

// initWatchdog retries allocation failures with exponential backoff. Any
// other error is returned at once.
func initWatchdog(ctx context.Context, cfg config.WatchdogConfig, cb watchdog.RecoveryFunc, log *slog.Logger, opts ...watchdog.Option) (*watchdog.Watchdog, error) {
	retryBackoff := backoff.NewExponentialBackOff()
	retryBackoff.InitialInterval = 100 * time.Millisecond
	retryBackoff.MaxInterval = 2 * time.Second
	retryBackoff.Multiplier = 2.0
	retryBackoff.RandomizationFactor = 0.2
	retryBackoff.MaxElapsedTime = 0

	for attempt := 1; ; attempt++ {
		wd, err := watchdog.Init(cfg.Name, cfg.TimeoutMillis, cb, opts...)
		if err == nil {
			return wd, nil
		}
		if !errors.Is(err, watchdog.ErrAllocation) || attempt >= cfg.InitAttempts {
			return nil, fmt.Errorf("init watchdog after %d attempt(s): %w", attempt, err)
		}

		wait := retryBackoff.NextBackOff()
		log.Warn("watchdog_init_retry", "attempt", attempt, "err", err, "retry_in", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (a *App) reportPreviousReset(path string) {
	last, ok, err := incident.Last(path)
	if err != nil {
		a.log.Warn("incident_log_unreadable", "path", path, "err", err)
		return
	}
	if !ok {
		return
	}
	a.log.Warn("previous_reset",
		"incident", last.ID,
		"watchdog", last.Watchdog,
		"at", last.At,
		"strikes", last.Strikes,
		"stalled", last.Stalled,
	)
}

// onEscalation records the incident before recovery so it survives a reset.
func (a *App) onEscalation(esc watchdog.Escalation) {
	recovery := "reset"
	if a.recover != nil {
		recovery = "callback"
	}

	if a.incidents != nil {
		err := a.incidents.Append(incident.Record{
			ID:        esc.ID,
			Watchdog:  esc.Watchdog,
			At:        esc.At,
			Strikes:   esc.Strikes,
			Threshold: esc.Threshold,
			Stalled:   esc.Stalled,
			Recovery:  recovery,
		})
		if err != nil {
			a.log.Error("incident_write_failed", "incident", esc.ID, "err", err)
		}
	}

	if a.recover != nil {
		a.recover(esc)
		return
	}
	watchdog.Reset(a.log, esc)
}

func (a *App) Watchdog() *watchdog.Watchdog { return a.wd }
func (a *App) Seats() *seats.Table { return a.table }
func (a *App) Broadcaster() *notify.Broadcaster { return a.broadcaster }
func (a *App) Server() *server.Server { return a.server }
func (a *App) Commands() *console.Commands { return console.NewCommands(a.wd, a.table) }

// Run starts the watchdog unless paused and runs every configured worker
// until ctx is cancelled or one of them fails. The watchdog is destroyed on
// return.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if !a.isPaused() {
		if err := a.wd.Start(); err != nil {
			return err
		}
	}

	return feeder.Run(ctx, a.workers()...)
}

func (a *App) workers() []feeder.Worker {
	cfg := a.cfg.Feeders
	var workers []feeder.Worker

	if cfg.Heartbeat {
		workers = append(workers, feeder.NewHeartbeat(a.wd, cfg.HeartbeatInterval, a.log))
	}
	if cfg.ProbeURL != "" {
		checker := feeder.NewHealthChecker(cfg.ProbeURL, 0)
		workers = append(workers, feeder.NewProbe(a.wd, checker, cfg.ProbeInterval, a.log))
	}
	if cfg.Simulate {
		seed := uint64(time.Now().UnixNano())
		workers = append(workers, feeder.NewSimulator(a.table, cfg.SimulateInterval, seed, a.log))
	}
	if a.server != nil {
		workers = append(workers, serverWorker{a.server})
		if a.cfg.Discovery.Enabled {
			workers = append(workers, &discoveryWorker{
				server: a.server,
				adv:    discovery.NewAdvertiser(a.log),
				info:   discovery.Info{Instance: a.cfg.Discovery.Instance, Watchdog: a.cfg.Watchdog.Name, Version: a.version},
				log:    a.log,
			})
		}
	}
	if a.cfg.Path != "" {
		workers = append(workers, &reloadWorker{app: a, path: a.cfg.Path})
	}
	return workers
}

// Close destroys the watchdog and closes the incident log.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if err := a.wd.Destroy(); err != nil {
			errs = append(errs, err)
		}
		if a.incidents != nil {
			if err := a.incidents.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

func (a *App) isPaused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}

// Apply switches the settings that can change at runtime: watchdog pause
// and seat silent mode. Everything else needs a restart.
func (a *App) Apply(cfg *config.Config) error {
	a.table.SetSilent(cfg.Seats.Silent)

	a.mu.Lock()
	defer a.mu.Unlock()

	// The console and the HTTP API can stop or start the watchdog too, so
	// compare against its actual state.
	active := a.wd.State() == watchdog.StateActive
	a.paused = cfg.Watchdog.Paused
	if a.paused != active {
		return nil
	}

	var err error
	if a.paused {
		err = a.wd.Stop()
	} else {
		err = a.wd.Start()
	}
	if err != nil {
		return err
	}
	a.log.Info("watchdog_pause_changed", "paused", a.paused)
	return nil
}
