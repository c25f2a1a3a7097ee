package watchdog

import (
	"sync"
	"time"
)

// Event records a lifecycle or escalation action of a watchdog.
type Event struct {
	At       time.Time `json:"at"`
	Watchdog string    `json:"watchdog"`
	Action   string    `json:"action"` // init | start | stop | strike | escalate | escalate_skipped | recovered | destroy | lock_failed
	Strikes  int       `json:"strikes,omitempty"`
	Incident string    `json:"incident,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

const eventBufferSize = 128

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) append(evt Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, evt)
	if len(l.events) <= eventBufferSize {
		return
	}

	excess := len(l.events) - eventBufferSize
	copy(l.events, l.events[excess:])
	l.events = l.events[:eventBufferSize]
}

func (l *eventLog) snapshot(limit int) []Event {
	if limit <= 0 || limit > eventBufferSize {
		limit = eventBufferSize
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) == 0 {
		return nil
	}
	if limit > len(l.events) {
		limit = len(l.events)
	}

	out := make([]Event, limit)
	copy(out, l.events[len(l.events)-limit:])
	return out
}

// record stores evt and forwards it to the event hook. It must be called
// without holding the handle lock.
func (w *Watchdog) record(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	evt.Watchdog = w.name

	w.events.append(evt)
	if w.eventHook != nil {
		w.eventHook(evt)
	}
}
