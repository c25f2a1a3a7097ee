// Package notify fans out watchdog and seat notifications to live listeners.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

const listenerBuffer = 16

// Kinds of notification.
const (
	KindWatchdog = "watchdog"
	KindSeat     = "seat"
)

// Notification is one message on the stream.
type Notification struct {
	ID   string    `json:"id"`
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// Broadcaster is a thread-safe pub/sub for notifications. A listener whose
// buffer is full misses messages instead of blocking the publisher.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[chan Notification]struct{}
	dropped   uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[chan Notification]struct{}),
	}
}

func (b *Broadcaster) Subscribe() chan Notification {
	ch := make(chan Notification, listenerBuffer)
	b.mu.Lock()
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) Unsubscribe(ch chan Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[ch]; ok {
		delete(b.listeners, ch)
		close(ch)
	}
}

// Publish wraps data in a Notification of kind and broadcasts it.
func (b *Broadcaster) Publish(kind string, data any) Notification {
	n := Notification{
		ID:   uuid.NewString(),
		Kind: kind,
		At:   time.Now(),
		Data: data,
	}
	b.Broadcast(n)
	return n
}

func (b *Broadcaster) Broadcast(n Notification) {
	b.mu.RLock()
	var dropped uint64
	for ch := range b.listeners {
		select {
		case ch <- n:
		default:
			dropped++
		}
	}
	b.mu.RUnlock()

	if dropped > 0 {
		b.mu.Lock()
		b.dropped += dropped
		b.mu.Unlock()
	}
}

func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Dropped is the total number of deliveries skipped for slow listeners.
func (b *Broadcaster) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

func encode(n Notification) ([]byte, error) {
	return json.Marshal(n)
}
