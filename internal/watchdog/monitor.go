package watchdog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// onTick is the tick source handler. It only bumps the raw counter and must
// never take the handle lock.
func (w *Watchdog) onTick() {
	w.rawTicks.Add(1)
}

// monitor is the entry of the monitor task. It inspects the counters every
// poll interval until the task context is cancelled.
func (w *Watchdog) monitor(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		esc, fire, err := w.inspect()
		if err != nil {
			// Already logged; try again on the next poll.
			timer.Reset(w.pollInterval)
			continue
		}
		if fire {
			w.escalate(esc)
		}
		timer.Reset(w.pollInterval)
	}
}

// inspect performs one monitor pass under the handle lock. A strike closes
// the current window, so the next strike needs another full timeout.
func (w *Watchdog) inspect() (Escalation, bool, error) {
	if err := w.lock("inspect"); err != nil {
		return Escalation{}, false, err
	}

	if !w.enabled {
		if err := w.unlock("inspect"); err != nil {
			return Escalation{}, false, err
		}
		return Escalation{}, false, nil
	}

	raw := w.rawTicks.Load()
	elapsed := raw - w.lastFeedTick
	missed := elapsed > w.timeoutTicks
	if missed {
		w.lastFeedTick = raw
	}
	fire := w.strikes.Observe(missed)
	strikes := w.strikes.strikes

	var esc Escalation
	if fire {
		now := time.Now()
		w.escalations++
		w.lastEscalationAt = now
		esc = Escalation{
			ID:        uuid.NewString(),
			Watchdog:  w.name,
			Strikes:   strikes,
			Threshold: w.resetThreshold,
			Stalled:   time.Duration(raw) * w.tickPeriod,
			At:        now,
		}
	}

	if err := w.unlock("inspect"); err != nil {
		return Escalation{}, false, err
	}

	if missed {
		w.log.Warn("watchdog_strike",
			"strikes", strikes,
			"threshold", w.resetThreshold,
			"raw_ticks", raw,
		)
		w.record(Event{Action: "strike", Strikes: strikes})
	}
	return esc, fire, nil
}

// escalate runs on the monitor goroutine without the handle lock. At most
// one recovery runs at a time; an escalation that arrives meanwhile is
// logged and recorded but not dispatched.
func (w *Watchdog) escalate(esc Escalation) {
	w.log.Error("watchdog_timeout",
		"incident", esc.ID,
		"strikes", esc.Strikes,
		"threshold", esc.Threshold,
		"stalled", esc.Stalled,
	)
	if !w.recovering.CompareAndSwap(false, true) {
		w.log.Warn("watchdog_recovery_in_progress", "incident", esc.ID)
		w.record(Event{At: esc.At, Action: "escalate_skipped", Strikes: esc.Strikes, Incident: esc.ID})
		return
	}
	defer w.recovering.Store(false)

	w.record(Event{At: esc.At, Action: "escalate", Strikes: esc.Strikes, Incident: esc.ID})
	if w.callback != nil {
		w.callback(esc)
		return
	}
	Reset(w.log, esc)
}
