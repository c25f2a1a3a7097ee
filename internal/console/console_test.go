package console

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"github.com/mbvlabs/seatguard/internal/seats"
	"github.com/mbvlabs/seatguard/internal/watchdog"
)

type fakeWatchdog struct {
	calls  []string
	err    error
	status watchdog.Status
	events []watchdog.Event
}

func (f *fakeWatchdog) Start() error { f.calls = append(f.calls, "start"); return f.err }
func (f *fakeWatchdog) Stop() error  { f.calls = append(f.calls, "stop"); return f.err }
func (f *fakeWatchdog) Feed() error  { f.calls = append(f.calls, "feed"); return f.err }

func (f *fakeWatchdog) Status() (watchdog.Status, error) { return f.status, f.err }

func (f *fakeWatchdog) Events(limit int) []watchdog.Event {
	if limit < len(f.events) {
		return f.events[len(f.events)-limit:]
	}
	return f.events
}

func newCommands(t *testing.T) (*Commands, *fakeWatchdog, *seats.Table) {
	t.Helper()
	wd := &fakeWatchdog{}
	table := seats.NewTable(2, slogt.New(t))
	return NewCommands(wd, table), wd, table
}

func run(c *Commands, line string) (string, bool) {
	var out bytes.Buffer
	exit := c.Execute(line, &out)
	return out.String(), exit
}

func TestSetAndShowSeats(t *testing.T) {
	c, _, table := newCommands(t)

	out, _ := run(c, "seats")
	require.Contains(t, out, "No seats reported yet")

	out, _ = run(c, "set 1 occupied")
	require.Empty(t, out)
	out, _ = run(c, "fix 2 2")
	require.Equal(t, "Seat 2 fixed to claimed\n", out)

	seat, ok := table.Get(1)
	require.True(t, ok)
	require.Equal(t, seats.Occupied, seat.Status)

	out, _ = run(c, "seats")
	require.Contains(t, out, "Seat 1: occupied")
	require.Contains(t, out, "Seat 2: claimed")
}

func TestSetRejectsBadInput(t *testing.T) {
	c, _, _ := newCommands(t)

	out, _ := run(c, "set 1")
	require.Contains(t, out, "Usage: set")
	out, _ = run(c, "set x 1")
	require.Contains(t, out, "Invalid seat id")
	out, _ = run(c, "set 1 7")
	require.Contains(t, out, "Invalid status")
	out, _ = run(c, "set 0 1")
	require.Contains(t, out, seats.ErrInvalidSeat.Error())
}

func TestSilentToggle(t *testing.T) {
	c, _, table := newCommands(t)

	out, _ := run(c, "silent on")
	require.Contains(t, out, "Silent mode on")
	require.True(t, table.Silent())

	out, _ = run(c, "silent")
	require.Contains(t, out, "Silent mode is on")

	run(c, "silent off")
	require.False(t, table.Silent())
}

func TestWatchdogCommands(t *testing.T) {
	c, wd, _ := newCommands(t)

	for _, sub := range []string{"start", "feed", "stop"} {
		out, _ := run(c, "wdt "+sub)
		require.Contains(t, out, "Watchdog "+sub+": ok")
	}
	require.Equal(t, []string{"start", "feed", "stop"}, wd.calls)

	wd.err = errors.New("lock broken")
	out, _ := run(c, "wdt feed")
	require.Contains(t, out, "Error: lock broken")

	out, _ = run(c, "wdt bogus")
	require.Contains(t, out, "Usage: wdt")
}

func TestWatchdogStatus(t *testing.T) {
	c, wd, _ := newCommands(t)
	at := time.Now()
	wd.status = watchdog.Status{
		Name:             "soft_wdt",
		State:            watchdog.StateActive,
		Enabled:          true,
		Strikes:          1,
		ResetThreshold:   2,
		RawTicks:         12,
		TimeoutTicks:     50,
		TickPeriodMillis: 100,
		LastEscalationAt: &at,
	}

	out, _ := run(c, "wdt")
	require.Contains(t, out, "soft_wdt")
	require.Contains(t, out, "active")
	require.Contains(t, out, "1/2")
	require.Contains(t, out, "12/50")
	require.Contains(t, out, "last escalation")
}

func TestEvents(t *testing.T) {
	c, wd, _ := newCommands(t)

	out, _ := run(c, "events")
	require.Contains(t, out, "No events")

	wd.events = []watchdog.Event{
		{At: time.Now(), Action: "start"},
		{At: time.Now(), Action: "strike", Strikes: 1},
		{At: time.Now(), Action: "escalate", Strikes: 2, Incident: "abc"},
	}
	out, _ = run(c, "events 2")
	require.NotContains(t, out, "start")
	require.Contains(t, out, "strikes=1")
	require.Contains(t, out, "incident=abc")

	out, _ = run(c, "events -1")
	require.Contains(t, out, "Usage: events")
}

func TestExitAndUnknown(t *testing.T) {
	c, _, _ := newCommands(t)

	out, exit := run(c, "frobnicate")
	require.False(t, exit)
	require.Contains(t, out, "Unknown command: frobnicate")

	_, exit = run(c, "   ")
	require.False(t, exit)

	_, exit = run(c, "exit")
	require.True(t, exit)

	out, _ = run(c, "help")
	require.Contains(t, out, "wdt status")
}
