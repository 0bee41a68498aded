package model

import "time"

// MonitorState represents the scheduling state of a registered monitor
type MonitorState string

const (
	MonitorStateIdle    MonitorState = "idle"
	MonitorStateDue     MonitorState = "due"
	MonitorStateRunning MonitorState = "running"
)

// ScheduleEntry tracks the check cadence of a single registered monitor.
// LastCheck is set immediately before an invocation starts, not after it
// completes, so a long-running check does not trigger an immediate re-run
// once it returns.
type ScheduleEntry struct {
	Service   string        `json:"service"`
	Interval  time.Duration `json:"interval"`
	LastCheck time.Time     `json:"last_check"`
	State     MonitorState  `json:"state"`
}
