package watchdog

import (
	"log/slog"
	"os"
	"syscall"
)

// systemReset is replaced in tests.
var systemReset = restartProcess

// Reset performs the default recovery for esc. Callbacks that only add
// bookkeeping call it last.
func Reset(log *slog.Logger, esc Escalation) {
	if log == nil {
		log = slog.Default()
	}
	log.Error("system will reset now", "incident", esc.ID)
	systemReset()
}

// restartProcess replaces the current process image with a fresh copy of
// the same binary. If that is not possible the process exits non-zero so a
// supervisor can restart it.
func restartProcess() {
	exe, err := os.Executable()
	if err == nil {
		err = syscall.Exec(exe, os.Args, os.Environ())
	}
	slog.Error("watchdog_restart_failed", "err", err)
	os.Exit(1)
}
