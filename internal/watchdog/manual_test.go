package watchdog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var errInjected = errors.New("injected failure")

// manualPlatform delivers ticks and monitor passes only when the test asks
// for them.
type manualPlatform struct {
	failLock, failTick, failTask bool

	live atomic.Int64

	lock   *manualLock
	ticker *manualTicker
	task   *manualTask
}

func (p *manualPlatform) NewLocker(string) (Locker, error) {
	if p.failLock {
		return nil, errInjected
	}
	p.live.Add(1)
	p.lock = &manualLock{release: func() { p.live.Add(-1) }}
	return p.lock, nil
}

func (p *manualPlatform) NewTickSource(_ string, _ time.Duration, handler func()) (TickSource, error) {
	if p.failTick {
		return nil, errInjected
	}
	p.live.Add(1)
	p.ticker = &manualTicker{handler: handler, release: func() { p.live.Add(-1) }}
	return p.ticker, nil
}

func (p *manualPlatform) NewTask(_ string, _ TaskConfig, _ func(context.Context)) (Task, error) {
	if p.failTask {
		return nil, errInjected
	}
	p.live.Add(1)
	p.task = &manualTask{release: func() { p.live.Add(-1) }}
	return p.task, nil
}

// step fires n ticks, running one monitor pass after each tick the way a
// poll interval equal to the tick period would. It returns the 1-based step
// of every escalation.
func (p *manualPlatform) step(w *Watchdog, n int) []int {
	var fired []int
	for i := 1; i <= n; i++ {
		p.ticker.fire()
		if !p.task.running.Load() {
			continue
		}
		esc, fire, err := w.inspect()
		if err != nil {
			continue
		}
		if fire {
			fired = append(fired, i)
			w.escalate(esc)
		}
	}
	return fired
}

type manualLock struct {
	mu         sync.Mutex
	failLock   atomic.Bool
	failUnlock atomic.Bool
	release    func()
	closed     bool
}

func (l *manualLock) Lock() error {
	if l.failLock.Load() {
		return errInjected
	}
	l.mu.Lock()
	return nil
}

func (l *manualLock) Unlock() error {
	l.mu.Unlock()
	if l.failUnlock.Load() {
		return errInjected
	}
	return nil
}

func (l *manualLock) Close() error {
	if !l.closed {
		l.closed = true
		l.release()
	}
	return nil
}

type manualTicker struct {
	handler   func()
	failStart bool
	running   atomic.Bool
	release   func()
	closed    bool
}

func (t *manualTicker) fire() {
	if t.running.Load() {
		t.handler()
	}
}

func (t *manualTicker) Start() error {
	if t.failStart {
		return errInjected
	}
	t.running.Store(true)
	return nil
}

func (t *manualTicker) Stop() error { t.running.Store(false); return nil }

func (t *manualTicker) Close() error {
	t.running.Store(false)
	if !t.closed {
		t.closed = true
		t.release()
	}
	return nil
}

type manualTask struct {
	failStart bool
	running   atomic.Bool
	release   func()
	closed    bool
}

func (t *manualTask) Start() error {
	if t.failStart {
		return errInjected
	}
	t.running.Store(true)
	return nil
}

func (t *manualTask) Halt() error { t.running.Store(false); return nil }

func (t *manualTask) Close() error {
	t.running.Store(false)
	if !t.closed {
		t.closed = true
		t.release()
	}
	return nil
}
