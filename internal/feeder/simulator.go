package feeder

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/mbvlabs/seatguard/internal/seats"
)

const DefaultSimulatorInterval = 2 * time.Second

// Simulator writes a random status to a random seat every interval. It
// stands in for camera nodes during bench testing.
type Simulator struct {
	table    *seats.Table
	interval time.Duration
	rng      *rand.Rand
	log      *slog.Logger
}

func NewSimulator(table *seats.Table, interval time.Duration, seed uint64, logger *slog.Logger) *Simulator {
	if interval <= 0 {
		interval = DefaultSimulatorInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		table:    table,
		interval: interval,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		log:      logger.With("worker", "simulator"),
	}
}

func (s *Simulator) Name() string { return "simulator" }

func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step performs one simulated update.
func (s *Simulator) Step() seats.Seat {
	id := uint8(1 + s.rng.IntN(s.table.Capacity()))
	status := seats.Status(s.rng.IntN(3))
	if err := s.table.Update(id, status); err != nil {
		s.log.Debug("simulated_update_failed", "err", err)
	}
	seat, _ := s.table.Get(id)
	return seat
}
