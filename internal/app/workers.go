package app

import (
	"context"
	"log/slog"

	"github.com/mbvlabs/seatguard/internal/config"
	"github.com/mbvlabs/seatguard/internal/discovery"
	"github.com/mbvlabs/seatguard/internal/server"
	"github.com/mbvlabs/seatguard/internal/watcher"
)

type serverWorker struct {
	s *server.Server
}

func (w serverWorker) Name() string { return "server" }
func (w serverWorker) Run(ctx context.Context) error { return w.s.Run(ctx) }

// discoveryWorker advertises the server once it is listening. mDNS failures
// are logged and do not stop the process.
type discoveryWorker struct {
	server *server.Server
	adv    *discovery.Advertiser
	info   discovery.Info
	log    *slog.Logger
}

func (w *discoveryWorker) Name() string { return "discovery" }

func (w *discoveryWorker) Run(ctx context.Context) error {
	addr, err := w.server.Addr(ctx)
	if err != nil {
		return err
	}
	port, err := discovery.PortOf(addr)
	if err != nil {
		w.log.Warn("mdns_disabled", "err", err)
		<-ctx.Done()
		return ctx.Err()
	}

	info := w.info
	info.Port = port
	if err := w.adv.Advertise(info); err != nil {
		w.log.Warn("mdns_disabled", "err", err)
	}
	defer w.adv.Stop()

	<-ctx.Done()
	return ctx.Err()
}

// reloadWorker re-reads the config file when it changes and applies the
// runtime-switchable settings.
type reloadWorker struct {
	app  *App
	path string
}

func (w *reloadWorker) Name() string { return "config-reload" }

func (w *reloadWorker) Run(ctx context.Context) error {
	changed := make(chan struct{}, 1)
	watchErr := make(chan error, 1)
	go func() { watchErr <- watcher.RunFileWatcher(ctx, w.path, changed, w.app.log) }()

	for {
		select {
		case <-ctx.Done():
			<-watchErr
			return ctx.Err()
		case err := <-watchErr:
			if err != nil {
				w.app.log.Warn("config_watch_failed", "path", w.path, "err", err)
			}
			<-ctx.Done()
			return ctx.Err()
		case <-changed:
			w.reload()
		}
	}
}

func (w *reloadWorker) reload() {
	cfg, err := config.Load(w.path)
	if err != nil {
		w.app.log.Warn("config_reload_failed", "path", w.path, "err", err)
		return
	}
	if err := w.app.Apply(cfg); err != nil {
		w.app.log.Error("config_apply_failed", "err", err)
		return
	}
	w.app.log.Info("config_reloaded", "path", w.path, "paused", cfg.Watchdog.Paused, "silent", cfg.Seats.Silent)
}
