// Package server exposes watchdog and seat status over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mbvlabs/seatguard/internal/notify"
	"github.com/mbvlabs/seatguard/internal/seats"
	"github.com/mbvlabs/seatguard/internal/watchdog"
)

const shutdownTimeout = 5 * time.Second

// Watchdog is the part of the watchdog handle the server drives.
type Watchdog interface {
	Start() error
	Stop() error
	Feed() error
	Status() (watchdog.Status, error)
	Events(limit int) []watchdog.Event
}

type Config struct {
	Addr        string
	Watchdog    Watchdog
	Seats       *seats.Table
	Broadcaster *notify.Broadcaster
	Logger      *slog.Logger
}

type Server struct {
	addr        string
	wd          Watchdog
	seats       *seats.Table
	broadcaster *notify.Broadcaster
	log         *slog.Logger
	handler     http.Handler

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:        cfg.Addr,
		wd:          cfg.Watchdog,
		seats:       cfg.Seats,
		broadcaster: cfg.Broadcaster,
		log:         logger.With("component", "server"),
		ready:       make(chan struct{}),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/watchdog", s.handleWatchdogStatus)
	mux.HandleFunc("GET /api/watchdog/events", s.handleWatchdogEvents)
	mux.HandleFunc("POST /api/watchdog/{action}", s.handleWatchdogAction)
	mux.HandleFunc("GET /api/seats", s.handleSeats)
	mux.HandleFunc("PUT /api/seats/{id}", s.handleSeatUpdate)
	if s.broadcaster != nil {
		mux.Handle("GET /api/stream", notify.NewWebSocketHandler(s.broadcaster, s.log))
	}
	return mux
}

// Run listens on the configured address and serves until ctx is cancelled.
// A bind failure is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", server.Addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)
	s.log.Info("server_listening", "addr", listener.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serveErr:
		return fmt.Errorf("serve on %s: %w", server.Addr, err)
	}
}

// Addr blocks until Run is listening and returns the bound address.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ready:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr(), nil
}
