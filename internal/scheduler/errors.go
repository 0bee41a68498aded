package scheduler

import "errors"

var (
	// ErrDuplicateMonitor is returned when a service is registered twice
	ErrDuplicateMonitor = errors.New("monitor already registered")

	// ErrNoMonitors is returned when the scheduler starts with nothing registered
	ErrNoMonitors = errors.New("no monitors registered")

	// ErrCheckTimeout marks a monitor invocation abandoned after its timeout
	ErrCheckTimeout = errors.New("check timed out")
)
