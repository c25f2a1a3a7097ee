package watchdog

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a Watchdog.
type State int32

const (
	StateUninit State = iota
	StateIdle
	StateActive
	StateStopped
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "uninit"
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RecoveryFunc is invoked on the monitor goroutine, outside the handle lock,
// once per escalation. It may block or never return.
type RecoveryFunc func(Escalation)

// Escalation describes a sustained stall that reached the reset threshold.
type Escalation struct {
	ID        string
	Watchdog  string
	Strikes   int
	Threshold int
	Stalled   time.Duration
	At        time.Time
}

// Watchdog is a software watchdog handle. Create it with Init and release it
// with Destroy; the zero value is not usable.
type Watchdog struct {
	name           string
	timeout        time.Duration
	timeoutTicks   uint32
	tickPeriod     time.Duration
	pollInterval   time.Duration
	resetThreshold int
	callback       RecoveryFunc
	eventHook      func(Event)
	log            *slog.Logger

	// rawTicks is written by the tick source without the lock.
	rawTicks atomic.Uint32
	state    atomic.Int32
	// recovering is set while a recovery callback runs. A monitor started
	// by Stop and Start during a slow recovery must not dispatch another.
	recovering atomic.Bool

	mu   Locker
	tick TickSource
	task Task

	// Guarded by mu.
	enabled          bool
	strikes          strikePolicy
	lastFeedTick     uint32
	lastFeedAt       time.Time
	escalations      int
	lastEscalationAt time.Time

	events eventLog
}

// Init creates a watchdog that escalates after DefaultResetThreshold missed
// windows of timeoutMillis each. The watchdog starts disabled; call Start.
// A nil callback selects the default recovery, which restarts the process.
//
// Any resource creation failure returns an error matching ErrAllocation,
// after releasing whatever was already created.
func Init(name string, timeoutMillis uint32, callback RecoveryFunc, opts ...Option) (*Watchdog, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(name, timeoutMillis); err != nil {
		return nil, err
	}
	if o.platform == nil {
		o.platform = NewRuntimePlatform()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	timeout := time.Duration(timeoutMillis) * time.Millisecond
	w := &Watchdog{
		name:           name,
		timeout:        timeout,
		timeoutTicks:   ticksFor(timeout, o.tickPeriod),
		tickPeriod:     o.tickPeriod,
		pollInterval:   o.pollInterval,
		resetThreshold: o.resetThreshold,
		callback:       callback,
		eventHook:      o.eventHook,
		log:            o.logger.With("watchdog", name),
		strikes:        newStrikePolicy(o.resetThreshold),
	}

	var undo []func() error
	fail := func(resource string, err error) (*Watchdog, error) {
		for i := len(undo) - 1; i >= 0; i-- {
			if cerr := undo[i](); cerr != nil {
				w.log.Warn("watchdog_unwind_failed", "err", cerr)
			}
		}
		w.log.Error("watchdog_init_failed", "resource", resource, "err", err)
		return nil, &AllocationError{Watchdog: name, Resource: resource, Err: err}
	}

	mu, err := o.platform.NewLocker(name)
	if err == nil && mu == nil {
		err = errors.New("platform returned no lock")
	}
	if err != nil {
		return fail("lock", err)
	}
	w.mu = mu
	undo = append(undo, mu.Close)

	tick, err := o.platform.NewTickSource(name, o.tickPeriod, w.onTick)
	if err == nil && tick == nil {
		err = errors.New("platform returned no tick source")
	}
	if err != nil {
		return fail("tick source", err)
	}
	w.tick = tick
	undo = append(undo, tick.Close)

	task, err := o.platform.NewTask(name, o.task, w.monitor)
	if err == nil && task == nil {
		err = errors.New("platform returned no task")
	}
	if err != nil {
		return fail("monitor task", err)
	}
	w.task = task

	w.state.Store(int32(StateIdle))
	w.log.Info("watchdog_initialized",
		"timeout", timeout,
		"timeout_ticks", w.timeoutTicks,
		"tick_period", w.tickPeriod,
		"reset_threshold", w.resetThreshold,
	)
	w.record(Event{Action: "init"})
	return w, nil
}

// Start enables monitoring and clears all strike state, then starts the
// monitor task and the tick source. Calling Start on an active watchdog
// clears the strike state again.
func (w *Watchdog) Start() error {
	if err := w.valid(); err != nil {
		return err
	}

	if err := w.lock("start"); err != nil {
		return err
	}
	w.enabled = true
	w.resetLocked()
	if err := w.unlock("start"); err != nil {
		return err
	}

	if err := w.task.Start(); err != nil {
		w.log.Error("watchdog_task_start_failed", "err", err)
		w.abortStart()
		return fmt.Errorf("watchdog %q: start monitor task: %w", w.name, err)
	}
	if err := w.tick.Start(); err != nil {
		w.log.Error("watchdog_tick_start_failed", "err", err)
		w.abortStart()
		return fmt.Errorf("watchdog %q: start tick source: %w", w.name, err)
	}

	if w.transition(StateActive) != StateActive {
		w.log.Info("watchdog_started")
		w.record(Event{Action: "start"})
	}
	return nil
}

// abortStart undoes a Start whose task or tick source failed to start, so
// the handle is left disabled with no monitor running.
func (w *Watchdog) abortStart() {
	if err := w.lock("start"); err == nil {
		w.enabled = false
		_ = w.unlock("start")
	}
	if err := w.task.Halt(); err != nil {
		w.log.Warn("watchdog_task_halt_failed", "err", err)
	}
}

// Stop disables escalation and stops the tick source and the monitor task.
// Resources stay allocated for a later Start. Stopping a stopped watchdog
// does nothing.
func (w *Watchdog) Stop() error {
	if err := w.valid(); err != nil {
		return err
	}
	return w.stop()
}

func (w *Watchdog) stop() error {
	if err := w.lock("stop"); err != nil {
		return err
	}
	w.enabled = false
	if err := w.unlock("stop"); err != nil {
		return err
	}

	var errs []error
	if err := w.tick.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop tick source: %w", err))
	}
	if err := w.task.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("halt monitor task: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		w.log.Error("watchdog_stop_failed", "err", err)
		return fmt.Errorf("watchdog %q: %w", w.name, err)
	}

	if w.state.CompareAndSwap(int32(StateActive), int32(StateStopped)) {
		w.log.Info("watchdog_stopped")
		w.record(Event{Action: "stop"})
	}
	return nil
}

// Feed clears the strike state. It is safe to call from any number of
// goroutines; the last feed wins.
func (w *Watchdog) Feed() error {
	if err := w.valid(); err != nil {
		return err
	}

	if err := w.lock("feed"); err != nil {
		return err
	}
	pending := w.resetLocked()
	if err := w.unlock("feed"); err != nil {
		return err
	}

	if pending > 0 {
		w.log.Info("watchdog_recovered", "strikes", pending)
		w.record(Event{Action: "recovered", Strikes: pending})
	}
	return nil
}

// Destroy stops the watchdog and releases the tick source, the monitor task
// and the lock. The handle must not be used afterwards; every method then
// returns ErrInvalidHandle.
func (w *Watchdog) Destroy() error {
	if err := w.valid(); err != nil {
		return err
	}

	errs := []error{w.stop()}
	if State(w.state.Swap(int32(StateDestroyed))) == StateDestroyed {
		return ErrInvalidHandle
	}

	if err := w.tick.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close tick source: %w", err))
	}
	if err := w.task.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close monitor task: %w", err))
	}
	if err := w.mu.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close lock: %w", err))
	}

	w.record(Event{Action: "destroy"})
	if err := errors.Join(errs...); err != nil {
		w.log.Warn("watchdog_destroyed_with_errors", "err", err)
		return fmt.Errorf("watchdog %q: destroy: %w", w.name, err)
	}
	w.log.Info("watchdog_destroyed")
	return nil
}

// Name returns the name given to Init.
func (w *Watchdog) Name() string {
	if w == nil {
		return ""
	}
	return w.name
}

// State returns the lifecycle state. A nil handle reports StateUninit.
func (w *Watchdog) State() State {
	if w == nil {
		return StateUninit
	}
	return State(w.state.Load())
}

// Status is a point-in-time view of a watchdog.
type Status struct {
	Name             string     `json:"name"`
	State            State      `json:"state"`
	Enabled          bool       `json:"enabled"`
	Strikes          int        `json:"strikes"`
	ResetThreshold   int        `json:"resetThreshold"`
	RawTicks         uint32     `json:"rawTicks"`
	TimeoutTicks     uint32     `json:"timeoutTicks"`
	TimeoutMillis    int64      `json:"timeoutMillis"`
	TickPeriodMillis int64      `json:"tickPeriodMillis"`
	Escalations      int        `json:"escalations"`
	LastFeedAt       time.Time  `json:"lastFeedAt"`
	LastEscalationAt *time.Time `json:"lastEscalationAt,omitempty"`
}

func (w *Watchdog) Status() (Status, error) {
	if err := w.valid(); err != nil {
		return Status{}, err
	}

	if err := w.lock("status"); err != nil {
		return Status{}, err
	}
	st := Status{
		Name:             w.name,
		Enabled:          w.enabled,
		Strikes:          w.strikes.strikes,
		ResetThreshold:   w.resetThreshold,
		RawTicks:         w.rawTicks.Load(),
		TimeoutTicks:     w.timeoutTicks,
		TimeoutMillis:    w.timeout.Milliseconds(),
		TickPeriodMillis: w.tickPeriod.Milliseconds(),
		Escalations:      w.escalations,
		LastFeedAt:       w.lastFeedAt,
	}
	if !w.lastEscalationAt.IsZero() {
		at := w.lastEscalationAt
		st.LastEscalationAt = &at
	}
	if err := w.unlock("status"); err != nil {
		return Status{}, err
	}

	st.State = w.State()
	return st, nil
}

// Events returns up to limit of the most recent events, oldest first.
// A limit <= 0 returns everything retained.
func (w *Watchdog) Events(limit int) []Event {
	if w == nil {
		return nil
	}
	return w.events.snapshot(limit)
}

func (w *Watchdog) valid() error {
	if w == nil {
		return ErrInvalidHandle
	}
	switch w.State() {
	case StateUninit, StateDestroyed:
		return ErrInvalidHandle
	}
	return nil
}

// transition moves to next unless the handle was destroyed concurrently and
// returns the previous state.
func (w *Watchdog) transition(next State) State {
	for {
		prev := w.state.Load()
		if State(prev) == StateDestroyed {
			return StateDestroyed
		}
		if w.state.CompareAndSwap(prev, int32(next)) {
			return State(prev)
		}
	}
}

// resetLocked clears the raw counter and the logical tally. Callers hold mu.
func (w *Watchdog) resetLocked() (pending int) {
	w.rawTicks.Store(0)
	w.lastFeedTick = 0
	w.lastFeedAt = time.Now()
	return w.strikes.Reset()
}

func (w *Watchdog) lock(op string) error {
	if err := w.mu.Lock(); err != nil {
		return w.lockFailed(op, "take", err)
	}
	return nil
}

func (w *Watchdog) unlock(op string) error {
	if err := w.mu.Unlock(); err != nil {
		return w.lockFailed(op, "release", err)
	}
	return nil
}

func (w *Watchdog) lockFailed(op, action string, err error) error {
	w.log.Error("watchdog_lock_failed", "op", op, "action", action, "err", err)
	w.record(Event{Action: "lock_failed", Detail: op + ": " + action})
	return &LockError{Watchdog: w.name, Op: op, Err: err}
}
