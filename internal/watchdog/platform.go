package watchdog

import (
	"context"
	"time"
)

// Locker is the mutual-exclusion primitive guarding a handle's shared state.
// Unlike sync.Mutex it may report failure, which callers surface as a
// *LockError.
type Locker interface {
	Lock() error
	Unlock() error
	Close() error
}

// TickSource delivers a periodic tick to the handler registered at creation.
// The handler runs in interrupt-equivalent context: it is never invoked
// concurrently with itself and must not block.
type TickSource interface {
	Start() error
	Stop() error
	Close() error
}

// Task is the monitor task. Halt asks the running entry function to return
// by cancelling its context and does not wait for it; Close does, up to a
// bounded time.
type Task interface {
	Start() error
	Halt() error
	Close() error
}

// TaskConfig carries scheduling hints for the monitor task. They are opaque
// to this package and only interpreted by platforms that can honor them.
type TaskConfig struct {
	Priority  int
	StackSize int
}

// PriorityAboveNormal keeps the monitor ahead of default application tasks
// on platforms with fixed priorities.
const PriorityAboveNormal = 1

func defaultTaskConfig() TaskConfig {
	return TaskConfig{
		Priority:  PriorityAboveNormal,
		StackSize: 1024,
	}
}

// Platform creates the resources a Watchdog owns. Every resource returned
// must be released by its Close method.
type Platform interface {
	NewLocker(name string) (Locker, error)
	NewTickSource(name string, period time.Duration, handler func()) (TickSource, error)
	NewTask(name string, cfg TaskConfig, entry func(ctx context.Context)) (Task, error)
}
