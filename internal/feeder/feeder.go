// Package feeder contains the workers that keep a watchdog fed while the
// part of the system they stand for is healthy.
package feeder

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Feeder is the part of a watchdog the workers need.
type Feeder interface {
	Feed() error
}

// Worker runs until ctx is cancelled or it fails.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// Run starts every worker and waits for all of them. The first worker error
// cancels the rest and is returned; the end of ctx is not an error.
func Run(ctx context.Context, workers ...Worker) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		g.Go(func() error {
			err := w.Run(ctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
