package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/m365ops/watchtower/internal/model"
	"github.com/m365ops/watchtower/internal/monitor"
	"github.com/m365ops/watchtower/internal/queue"
)

// AlertQueue is the scheduler's view of the deduplication queue: monitors
// submit into it during checks, the scheduler drains it after each tick
type AlertQueue interface {
	queue.AlertSink
	Drain() []*model.Alert
}

// Dispatcher delivers one accepted alert
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *model.Alert) model.DeliveryResult
}

// History journals accepted alerts and their delivery outcome. Optional.
type History interface {
	Store(ctx context.Context, alert *model.Alert) error
	MarkDelivery(ctx context.Context, correlationID string, delivered bool, reason string) error
}

// Options configures a CheckScheduler
type Options struct {
	// CheckTimeout bounds each monitor invocation; expired checks are
	// abandoned and logged as timeout failures.
	CheckTimeout time.Duration

	// TickInterval is the cadence of Run's tick loop.
	TickInterval time.Duration

	// MaxAlertsPerHour is an advisory cap on accepted alerts; exceeding it
	// logs a warning but never blocks delivery. 0 disables the warning.
	MaxAlertsPerHour int

	// History is the optional alert journal.
	History History
}

// entry is one registered monitor's schedule state
type entry struct {
	monitor   monitor.Monitor
	service   string
	interval  time.Duration
	lastCheck time.Time
	state     model.MonitorState
}

// CheckScheduler invokes each registered monitor when its interval has
// elapsed, isolating failures so one broken monitor never stops the others,
// then drains accepted alerts through the dispatcher in acceptance order.
type CheckScheduler struct {
	logger     *zap.Logger
	queue      AlertQueue
	dispatcher Dispatcher
	opts       Options

	mu      sync.Mutex
	entries []*entry
	started bool

	// accepted holds acceptance times in the trailing hour for the
	// advisory rate warning.
	accepted []time.Time
}

// New creates a check scheduler
func New(queue AlertQueue, dispatcher Dispatcher, opts Options, logger *zap.Logger) *CheckScheduler {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = time.Minute
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	return &CheckScheduler{
		logger:     logger.Named("check-scheduler"),
		queue:      queue,
		dispatcher: dispatcher,
		opts:       opts,
	}
}

// Register adds a monitor with its check interval. Registration happens once
// at startup, before Run.
func (s *CheckScheduler) Register(m monitor.Monitor, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.service == m.Service() {
			return fmt.Errorf("%w: %s", ErrDuplicateMonitor, m.Service())
		}
	}
	s.entries = append(s.entries, &entry{
		monitor:  m,
		service:  m.Service(),
		interval: interval,
		state:    model.MonitorStateIdle,
	})
	s.logger.Info("Registered monitor",
		zap.String("service", m.Service()),
		zap.Duration("interval", interval))
	return nil
}

// Entries returns a snapshot of the schedule state for every registered monitor
func (s *CheckScheduler) Entries() []model.ScheduleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.ScheduleEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, model.ScheduleEntry{
			Service:   e.service,
			Interval:  e.interval,
			LastCheck: e.lastCheck,
			State:     e.state,
		})
	}
	return out
}

// Run drives Tick on the configured cadence until ctx is cancelled. The
// in-flight tick completes before Run returns, so no alert is left
// half-delivered.
func (s *CheckScheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if len(s.entries) == 0 {
		s.mu.Unlock()
		return ErrNoMonitors
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("Scheduler started",
		zap.Int("monitors", len(s.entries)),
		zap.Duration("tick_interval", s.opts.TickInterval))

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return nil
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// Tick runs every due monitor concurrently, waits for them to finish or be
// abandoned on timeout, then drains the queue through the dispatcher in
// acceptance order.
func (s *CheckScheduler) Tick(now time.Time) {
	due := s.collectDue(now)

	var wg sync.WaitGroup
	for _, e := range due {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			s.runCheck(e)
		}(e)
	}
	wg.Wait()

	s.dispatchPending(now)
}

// collectDue marks entries whose interval has elapsed as due and stamps
// lastCheck before invocation, so overlapping ticks cannot double-invoke a
// monitor and a slow check is not immediately re-run when it returns.
func (s *CheckScheduler) collectDue(now time.Time) []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*entry
	for _, e := range s.entries {
		if e.state == model.MonitorStateRunning {
			continue
		}
		if !e.lastCheck.IsZero() && now.Before(e.lastCheck.Add(e.interval)) {
			continue
		}
		e.lastCheck = now
		e.state = model.MonitorStateDue
		due = append(due, e)
	}
	return due
}

// runCheck invokes one monitor with panic containment and a per-check
// timeout. A failing or panicking monitor returns to Idle and becomes due
// again after its interval; there is no terminal failure state.
func (s *CheckScheduler) runCheck(e *entry) {
	s.setState(e, model.MonitorStateRunning)
	defer s.setState(e, model.MonitorStateIdle)

	// The timeout context is deliberately not derived from the run context:
	// during shutdown an in-flight check still gets its full timeout to
	// finish before being abandoned.
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CheckTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("monitor panicked: %v", r)
			}
		}()
		done <- e.monitor.Check(ctx, s.queue)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error("Check failed",
				zap.String("service", e.service),
				zap.Error(err))
		}
	case <-ctx.Done():
		s.logger.Error("Check abandoned",
			zap.String("service", e.service),
			zap.Duration("timeout", s.opts.CheckTimeout),
			zap.Error(ErrCheckTimeout))
	}
}

func (s *CheckScheduler) setState(e *entry, state model.MonitorState) {
	s.mu.Lock()
	e.state = state
	s.mu.Unlock()
}

// dispatchPending drains accepted alerts FIFO through the dispatcher,
// journaling each outcome when a history is configured
func (s *CheckScheduler) dispatchPending(now time.Time) {
	alerts := s.queue.Drain()
	if len(alerts) == 0 {
		return
	}

	s.noteAccepted(now, len(alerts))

	ctx := context.Background()
	for _, alert := range alerts {
		if s.opts.History != nil {
			if err := s.opts.History.Store(ctx, alert); err != nil {
				s.logger.Error("Failed to journal alert",
					zap.String("correlation_id", alert.CorrelationID),
					zap.Error(err))
			}
		}

		result := s.dispatcher.Dispatch(ctx, alert)

		if s.opts.History != nil {
			if err := s.opts.History.MarkDelivery(ctx, alert.CorrelationID, result.Delivered, result.Reason); err != nil {
				s.logger.Error("Failed to journal delivery outcome",
					zap.String("correlation_id", alert.CorrelationID),
					zap.Error(err))
			}
		}
	}
}

// noteAccepted tracks acceptances in the trailing hour and logs the advisory
// warning when the configured cap is exceeded
func (s *CheckScheduler) noteAccepted(now time.Time, count int) {
	if s.opts.MaxAlertsPerHour <= 0 {
		return
	}

	s.mu.Lock()
	cutoff := now.Add(-time.Hour)
	kept := s.accepted[:0]
	for _, t := range s.accepted {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	for i := 0; i < count; i++ {
		kept = append(kept, now)
	}
	s.accepted = kept
	total := len(kept)
	s.mu.Unlock()

	if total > s.opts.MaxAlertsPerHour {
		s.logger.Warn("Alert rate above configured hourly cap",
			zap.Int("accepted_last_hour", total),
			zap.Int("max_alerts_per_hour", s.opts.MaxAlertsPerHour))
	}
}
