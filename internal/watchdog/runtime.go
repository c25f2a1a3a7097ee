package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var errClosed = errors.New("resource closed")

const defaultTaskExitTimeout = 2 * time.Second

// Resources counts the live resources created by a RuntimePlatform.
type Resources struct {
	Locks       int64
	TickSources int64
	Tasks       int64
	Goroutines  int64
}

// Zero reports whether nothing created by the platform is still live.
func (r Resources) Zero() bool {
	return r == Resources{}
}

// RuntimePlatform implements Platform on top of goroutines, time.Ticker and
// sync.Mutex. The zero value is ready to use.
type RuntimePlatform struct {
	// TaskExitTimeout bounds how long Task.Close waits for the monitor
	// goroutine. Zero means two seconds.
	TaskExitTimeout time.Duration

	locks      atomic.Int64
	ticks      atomic.Int64
	tasks      atomic.Int64
	goroutines atomic.Int64
}

// NewRuntimePlatform returns a RuntimePlatform with default settings.
func NewRuntimePlatform() *RuntimePlatform {
	return &RuntimePlatform{}
}

// Resources returns a snapshot of live resource counts.
func (p *RuntimePlatform) Resources() Resources {
	return Resources{
		Locks:       p.locks.Load(),
		TickSources: p.ticks.Load(),
		Tasks:       p.tasks.Load(),
		Goroutines:  p.goroutines.Load(),
	}
}

func (p *RuntimePlatform) NewLocker(name string) (Locker, error) {
	p.locks.Add(1)
	return &runtimeLock{release: func() { p.locks.Add(-1) }}, nil
}

func (p *RuntimePlatform) NewTickSource(name string, period time.Duration, handler func()) (TickSource, error) {
	if period <= 0 {
		return nil, fmt.Errorf("tick period must be positive, got %s", period)
	}
	if handler == nil {
		return nil, errors.New("tick handler is nil")
	}
	p.ticks.Add(1)
	return &runtimeTicker{
		period:     period,
		handler:    handler,
		goroutines: &p.goroutines,
		release:    func() { p.ticks.Add(-1) },
	}, nil
}

func (p *RuntimePlatform) NewTask(name string, cfg TaskConfig, entry func(ctx context.Context)) (Task, error) {
	if entry == nil {
		return nil, errors.New("task entry is nil")
	}
	exitTimeout := p.TaskExitTimeout
	if exitTimeout <= 0 {
		exitTimeout = defaultTaskExitTimeout
	}
	p.tasks.Add(1)
	return &runtimeTask{
		name:        name,
		entry:       entry,
		exitTimeout: exitTimeout,
		goroutines:  &p.goroutines,
		release:     func() { p.tasks.Add(-1) },
	}, nil
}

type runtimeLock struct {
	mu      sync.Mutex
	closed  atomic.Bool
	release func()
}

func (l *runtimeLock) Lock() error {
	if l.closed.Load() {
		return errClosed
	}
	l.mu.Lock()
	return nil
}

func (l *runtimeLock) Unlock() error {
	l.mu.Unlock()
	return nil
}

func (l *runtimeLock) Close() error {
	if l.closed.CompareAndSwap(false, true) {
		l.release()
	}
	return nil
}

type runtimeTicker struct {
	period     time.Duration
	handler    func()
	goroutines *atomic.Int64
	release    func()

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

func (t *runtimeTicker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errClosed
	}
	if t.stop != nil {
		return nil
	}

	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.goroutines.Add(1)
	go t.run(t.stop, t.done)
	return nil
}

func (t *runtimeTicker) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer t.goroutines.Add(-1)

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.handler()
		}
	}
}

// Stop waits for the tick goroutine to exit. The handler never blocks, so
// the wait is bounded by one handler call.
func (t *runtimeTicker) Stop() error {
	t.mu.Lock()
	if t.stop == nil {
		t.mu.Unlock()
		return nil
	}
	close(t.stop)
	done := t.done
	t.stop = nil
	t.done = nil
	t.mu.Unlock()

	<-done
	return nil
}

func (t *runtimeTicker) Close() error {
	if err := t.Stop(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		t.release()
	}
	return nil
}

type runtimeTask struct {
	name        string
	entry       func(ctx context.Context)
	exitTimeout time.Duration
	goroutines  *atomic.Int64
	release     func()

	mu     sync.Mutex
	cancel context.CancelFunc
	runs   sync.WaitGroup
	closed bool
}

func (t *runtimeTask) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errClosed
	}
	if t.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.runs.Add(1)
	t.goroutines.Add(1)
	go func() {
		defer t.runs.Done()
		defer t.goroutines.Add(-1)
		t.entry(ctx)
	}()
	return nil
}

// Halt does not wait: the entry may be running a recovery callback that
// itself calls Stop, or that never returns.
func (t *runtimeTask) Halt() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	return nil
}

func (t *runtimeTask) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.mu.Unlock()
	defer t.release()

	done := make(chan struct{})
	go func() {
		t.runs.Wait()
		close(done)
	}()

	timer := time.NewTimer(t.exitTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("task %s did not exit within %s", t.name, t.exitTimeout)
	}
}
