// Package watchdog implements a software watchdog for cooperating goroutines.
//
// A [Watchdog] owns a periodic tick source, a monitor task and a lock.
// The tick source only increments an atomic counter. The monitor task wakes
// on a polling interval, takes the lock, and turns the raw tick count into
// logical strikes: one strike per full timeout window that passes without a
// call to [Watchdog.Feed]. When the strike tally reaches the reset threshold
// (2 by default) the registered [RecoveryFunc] runs on the monitor goroutine,
// outside the lock. Without a callback the process restarts itself.
//
// The lifecycle is explicit:
//
//	Idle --Start--> Active --Stop--> Stopped --Start--> Active
//	any --Destroy--> Destroyed
//
// Escalation fires once per sustained stall. Only Feed or Start re-arms it.
package watchdog
