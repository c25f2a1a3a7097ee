// Package console provides the interactive operator shell.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"

	"github.com/mbvlabs/seatguard/internal/seats"
	"github.com/mbvlabs/seatguard/internal/watchdog"
)

// Watchdog is the part of the watchdog handle the shell drives.
type Watchdog interface {
	Start() error
	Stop() error
	Feed() error
	Status() (watchdog.Status, error)
	Events(limit int) []watchdog.Event
}

// Commands executes shell commands. It has no terminal of its own.
type Commands struct {
	wd    Watchdog
	table *seats.Table
}

func NewCommands(wd Watchdog, table *seats.Table) *Commands {
	return &Commands{wd: wd, table: table}
}

// Execute runs one command line and writes its output to out. It reports
// whether the shell should exit.
func (c *Commands) Execute(line string, out io.Writer) (exit bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		printHelp(out)
	case "seats", "ls":
		c.cmdSeats(out)
	case "set":
		c.cmdSet(out, args, false)
	case "fix":
		c.cmdSet(out, args, true)
	case "silent":
		c.cmdSilent(out, args)
	case "wdt":
		c.cmdWatchdog(out, args)
	case "events":
		c.cmdEvents(out, args)
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Exiting...")
		return true
	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `
seatguard commands:
  Seats:
    seats                  - Show all seat states
    set <id> <status>      - Set a seat (0 available, 1 occupied, 2 claimed)
    fix <id> <status>      - Force a seat state and confirm
    silent on|off          - Suppress warnings about invalid updates

  Watchdog:
    wdt status             - Show watchdog state and counters
    wdt start|stop         - Enable or disable monitoring
    wdt feed               - Feed the watchdog by hand
    events [n]             - Show the last n watchdog events (default 10)

  help                     - Show this help
  exit                     - Leave the shell`)
}

func (c *Commands) cmdSeats(out io.Writer) {
	snap := c.table.Snapshot()
	if len(snap) == 0 {
		fmt.Fprintln(out, "No seats reported yet")
		return
	}

	fmt.Fprintln(out, "Current seat status:")
	for _, s := range snap {
		fmt.Fprintf(out, "  Seat %d: %s\n", s.ID, s.Status)
	}
}

func (c *Commands) cmdSet(out io.Writer, args []string, confirm bool) {
	if len(args) != 2 {
		if confirm {
			fmt.Fprintln(out, "Usage: fix <id> <status>")
		} else {
			fmt.Fprintln(out, "Usage: set <id> <status>")
		}
		return
	}

	id, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		fmt.Fprintf(out, "Invalid seat id: %s\n", args[0])
		return
	}
	status, err := seats.ParseStatus(args[1])
	if err != nil {
		fmt.Fprintln(out, "Invalid status, should be 0(Available), 1(Occupied), 2(Claimed)")
		return
	}

	if err := c.table.Update(uint8(id), status); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if confirm {
		fmt.Fprintf(out, "Seat %d fixed to %s\n", id, status)
	}
}

func (c *Commands) cmdSilent(out io.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintf(out, "Silent mode is %s\n", onOff(c.table.Silent()))
		return
	}

	switch strings.ToLower(args[0]) {
	case "on", "1", "true":
		c.table.SetSilent(true)
	case "off", "0", "false":
		c.table.SetSilent(false)
	default:
		fmt.Fprintln(out, "Usage: silent on|off")
		return
	}
	fmt.Fprintf(out, "Silent mode %s\n", onOff(c.table.Silent()))
}

func (c *Commands) cmdWatchdog(out io.Writer, args []string) {
	sub := "status"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	var err error
	switch sub {
	case "status":
		c.printStatus(out)
		return
	case "start":
		err = c.wd.Start()
	case "stop":
		err = c.wd.Stop()
	case "feed":
		err = c.wd.Feed()
	default:
		fmt.Fprintln(out, "Usage: wdt status|start|stop|feed")
		return
	}

	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Watchdog %s: ok\n", sub)
}

func (c *Commands) printStatus(out io.Writer) {
	st, err := c.wd.Status()
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "name:\t%s\n", st.Name)
	fmt.Fprintf(tw, "state:\t%s\n", st.State)
	fmt.Fprintf(tw, "enabled:\t%t\n", st.Enabled)
	fmt.Fprintf(tw, "strikes:\t%d/%d\n", st.Strikes, st.ResetThreshold)
	fmt.Fprintf(tw, "ticks:\t%d/%d (%dms each)\n", st.RawTicks, st.TimeoutTicks, st.TickPeriodMillis)
	fmt.Fprintf(tw, "escalations:\t%d\n", st.Escalations)
	if !st.LastFeedAt.IsZero() {
		fmt.Fprintf(tw, "last feed:\t%s ago\n", time.Since(st.LastFeedAt).Round(time.Millisecond))
	}
	if st.LastEscalationAt != nil {
		fmt.Fprintf(tw, "last escalation:\t%s\n", st.LastEscalationAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func (c *Commands) cmdEvents(out io.Writer, args []string) {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintln(out, "Usage: events [n]")
			return
		}
		limit = n
	}

	events := c.wd.Events(limit)
	if len(events) == 0 {
		fmt.Fprintln(out, "No events")
		return
	}
	for _, evt := range events {
		line := fmt.Sprintf("%s  %-11s", evt.At.Format("15:04:05.000"), evt.Action)
		if evt.Strikes > 0 {
			line += fmt.Sprintf(" strikes=%d", evt.Strikes)
		}
		if evt.Incident != "" {
			line += " incident=" + evt.Incident
		}
		if evt.Detail != "" {
			line += " " + evt.Detail
		}
		fmt.Fprintln(out, line)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Shell is the readline front end for Commands.
type Shell struct {
	rl *readline.Instance
}

func New() (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "seatguard> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{rl: rl}, nil
}

// Stdout coordinates writes with the prompt. Point the logger at it while
// the shell runs.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

func (s *Shell) Close() error {
	return s.rl.Close()
}

// Run executes commands until exit or EOF, then calls cancel. It returns
// when ctx ends.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc, cmds *Commands) {
	defer s.rl.Close()

	go func() {
		<-ctx.Done()
		s.rl.Close()
	}()

	printHelp(s.rl.Stdout())
	for {
		if ctx.Err() != nil {
			return
		}

		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if ctx.Err() == nil {
				fmt.Fprintln(s.rl.Stdout(), "Exiting...")
				cancel()
			}
			return
		}

		if cmds.Execute(line, s.rl.Stdout()) {
			cancel()
			return
		}
	}
}
