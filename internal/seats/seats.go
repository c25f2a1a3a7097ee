// Package seats holds the current occupancy status of every tracked seat.
package seats

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Status is the occupancy state of one seat.
type Status uint8

const (
	Available Status = iota
	Occupied
	Claimed
)

func (s Status) String() string {
	switch s {
	case Available:
		return "available"
	case Occupied:
		return "occupied"
	case Claimed:
		return "claimed"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	if s > Claimed {
		return nil, fmt.Errorf("invalid seat status %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus accepts a status name or its numeric value.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "available":
		return Available, nil
	case "1", "occupied":
		return Occupied, nil
	case "2", "claimed":
		return Claimed, nil
	}
	return 0, fmt.Errorf("invalid seat status %q: want 0 (available), 1 (occupied) or 2 (claimed)", s)
}

// StatusFromCode maps a status code reported by a camera node. Codes 3 and
// 4 mean the seat was seen empty; anything unrecognised is treated as
// available.
func StatusFromCode(code string) Status {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "1", "occupied":
		return Occupied
	case "2", "claimed":
		return Claimed
	default:
		return Available
	}
}

var (
	ErrInvalidSeat = errors.New("invalid seat id")
	ErrTableFull   = errors.New("seat table full")
)

// DefaultCapacity is the number of seats a table tracks unless configured.
const DefaultCapacity = 2

type Seat struct {
	ID        uint8     `json:"id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Table is a fixed-capacity, concurrency-safe seat table.
type Table struct {
	capacity int
	log      *slog.Logger

	mu          sync.Mutex
	seats       map[uint8]Seat
	silent      bool
	subscribers []func(Seat)
}

func NewTable(capacity int, logger *slog.Logger) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		capacity: capacity,
		log:      logger,
		seats:    make(map[uint8]Seat, capacity),
	}
}

func (t *Table) Capacity() int {
	return t.capacity
}

// Update sets the status of seat id, adding it while capacity allows.
// Subscribers are notified only when the status actually changed.
func (t *Table) Update(id uint8, status Status) error {
	if id == 0 {
		return t.reject(ErrInvalidSeat, "id", id)
	}
	if status > Claimed {
		return t.reject(fmt.Errorf("invalid seat status %d", status), "id", id)
	}

	t.mu.Lock()
	prev, ok := t.seats[id]
	if !ok && len(t.seats) >= t.capacity {
		t.mu.Unlock()
		return t.reject(ErrTableFull, "id", id, "capacity", t.capacity)
	}
	seat := Seat{ID: id, Status: status, UpdatedAt: time.Now()}
	t.seats[id] = seat
	changed := !ok || prev.Status != status
	subs := slices.Clone(t.subscribers)
	t.mu.Unlock()

	if changed {
		t.log.Debug("seat_updated", "id", id, "status", status)
		for _, fn := range subs {
			fn(seat)
		}
	}
	return nil
}

func (t *Table) reject(err error, args ...any) error {
	t.mu.Lock()
	silent := t.silent
	t.mu.Unlock()

	if !silent {
		t.log.Warn("seat_update_rejected", append(args, "err", err)...)
	}
	return err
}

// Get returns the seat with id. Unknown seats report Available.
func (t *Table) Get(id uint8) (Seat, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seat, ok := t.seats[id]
	if !ok {
		return Seat{ID: id, Status: Available}, false
	}
	return seat, true
}

// Snapshot returns all seats ordered by id.
func (t *Table) Snapshot() []Seat {
	t.mu.Lock()
	out := make([]Seat, 0, len(t.seats))
	for _, seat := range t.seats {
		out = append(out, seat)
	}
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b Seat) int { return int(a.ID) - int(b.ID) })
	return out
}

// SetSilent suppresses warnings about rejected updates.
func (t *Table) SetSilent(silent bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.silent = silent
}

func (t *Table) Silent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.silent
}

// Subscribe registers fn to be called after every status change. fn runs on
// the updating goroutine without the table lock held.
func (t *Table) Subscribe(fn func(Seat)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, fn)
}
