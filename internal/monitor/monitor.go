package monitor

import (
	"context"

	"github.com/m365ops/watchtower/internal/queue"
)

// Monitor is one service's health check. A monitor inspects its service and
// submits zero or more candidate alerts to the sink; the core never knows
// what a monitor checks. Check must respect ctx cancellation, as slow checks
// are abandoned on timeout.
type Monitor interface {
	// Service returns the identifier used on this monitor's alerts
	Service() string

	// Check performs one inspection and submits findings to the sink
	Check(ctx context.Context, sink queue.AlertSink) error
}
