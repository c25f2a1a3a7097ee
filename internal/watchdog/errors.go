package watchdog

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocation is matched by every resource creation failure in Init.
	ErrAllocation = errors.New("watchdog resource allocation failed")

	// ErrInvalidHandle is returned for nil or destroyed handles.
	ErrInvalidHandle = errors.New("invalid watchdog handle")

	// ErrLockAcquisition is matched when the handle lock reports a failure.
	ErrLockAcquisition = errors.New("watchdog lock failure")

	// ErrInvalidConfig is returned by Init before any allocation happens.
	ErrInvalidConfig = errors.New("invalid watchdog config")
)

// AllocationError reports which resource could not be created during Init.
type AllocationError struct {
	Watchdog string
	Resource string
	Err      error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("watchdog %q: allocate %s: %v", e.Watchdog, e.Resource, e.Err)
}

func (e *AllocationError) Unwrap() []error {
	return []error{ErrAllocation, e.Err}
}

// LockError reports a failed take or release of the handle lock.
type LockError struct {
	Watchdog string
	Op       string
	Err      error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("watchdog %q: %s: lock: %v", e.Watchdog, e.Op, e.Err)
}

func (e *LockError) Unwrap() []error {
	return []error{ErrLockAcquisition, e.Err}
}
