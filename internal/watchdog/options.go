package watchdog

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultResetThreshold is the number of consecutive missed windows
	// tolerated before recovery fires.
	DefaultResetThreshold = 2

	// DefaultTickPeriod is the tick source period. Timeouts are converted
	// to ticks of this length.
	DefaultTickPeriod = 100 * time.Millisecond

	// DefaultPollInterval is how often the monitor task inspects the
	// counters.
	DefaultPollInterval = 100 * time.Millisecond
)

// Option configures Init.
type Option func(*options)

type options struct {
	platform       Platform
	logger         *slog.Logger
	tickPeriod     time.Duration
	pollInterval   time.Duration
	resetThreshold int
	task           TaskConfig
	eventHook      func(Event)
}

func defaultOptions() options {
	return options{
		tickPeriod:     DefaultTickPeriod,
		pollInterval:   DefaultPollInterval,
		resetThreshold: DefaultResetThreshold,
		task:           defaultTaskConfig(),
	}
}

// WithPlatform replaces the runtime platform, mostly for tests and for
// hosts with their own timer and task primitives.
func WithPlatform(p Platform) Option {
	return func(o *options) { o.platform = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTickPeriod sets the tick source period. A window counts as missed
// once more than the timeout's worth of ticks have passed, so each strike
// takes timeoutTicks+1 ticks and escalation lands threshold ticks after
// threshold*timeout. Short timeouts relative to d make that drift large.
func WithTickPeriod(d time.Duration) Option {
	return func(o *options) { o.tickPeriod = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithResetThreshold sets how many consecutive missed windows escalate.
// A threshold of 1 escalates on the first missed window.
func WithResetThreshold(n int) Option {
	return func(o *options) { o.resetThreshold = n }
}

func WithTaskConfig(cfg TaskConfig) Option {
	return func(o *options) { o.task = cfg }
}

// WithEventHook registers fn to receive every recorded Event. fn runs on
// the goroutine that produced the event and must not call back into the
// watchdog.
func WithEventHook(fn func(Event)) Option {
	return func(o *options) { o.eventHook = fn }
}

func (o options) validate(name string, timeoutMillis uint32) error {
	var err error
	if name == "" {
		err = errors.Join(err, errors.New("name must not be empty"))
	}
	if timeoutMillis == 0 {
		err = errors.Join(err, errors.New("timeout must be positive"))
	}
	if o.tickPeriod <= 0 {
		err = errors.Join(err, fmt.Errorf("tick period must be positive, got %s", o.tickPeriod))
	}
	if o.pollInterval <= 0 {
		err = errors.Join(err, fmt.Errorf("poll interval must be positive, got %s", o.pollInterval))
	}
	if o.resetThreshold < 1 {
		err = errors.Join(err, fmt.Errorf("reset threshold must be at least 1, got %d", o.resetThreshold))
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ticksFor converts a timeout to whole ticks, rounding up.
func ticksFor(timeout, period time.Duration) uint32 {
	n := (timeout + period - 1) / period
	if n < 1 {
		return 1
	}
	return uint32(n)
}
