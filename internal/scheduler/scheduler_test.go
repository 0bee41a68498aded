package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/m365ops/watchtower/internal/model"
	"github.com/m365ops/watchtower/internal/queue"
)

// fakeMonitor runs the given check func on every invocation
type fakeMonitor struct {
	service string
	check   func(ctx context.Context, sink queue.AlertSink) error
}

func (m *fakeMonitor) Service() string {
	return m.service
}

func (m *fakeMonitor) Check(ctx context.Context, sink queue.AlertSink) error {
	return m.check(ctx, sink)
}

// recordingDispatcher records dispatched alerts in order
type recordingDispatcher struct {
	mu     sync.Mutex
	alerts []*model.Alert
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, alert *model.Alert) model.DeliveryResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, alert)
	return model.DeliveryResult{Delivered: true}
}

func (d *recordingDispatcher) titles() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var titles []string
	for _, alert := range d.alerts {
		titles = append(titles, alert.Title)
	}
	return titles
}

func newTestScheduler(t *testing.T) (*CheckScheduler, *queue.DedupQueue, *recordingDispatcher) {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	q := queue.NewDedupQueue(time.Hour, logger)
	dispatcher := &recordingDispatcher{}
	sched := New(q, dispatcher, Options{CheckTimeout: 2 * time.Second}, logger)
	return sched, q, dispatcher
}

func submitDraft(service, title string) func(ctx context.Context, sink queue.AlertSink) error {
	return func(ctx context.Context, sink queue.AlertSink) error {
		_, err := sink.Submit(model.AlertDraft{
			Service:  service,
			Severity: model.SeverityHigh,
			Title:    title,
		})
		return err
	}
}

func TestCheckScheduler_IntervalGating(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	var invocations int
	var mu sync.Mutex
	m := &fakeMonitor{
		service: "exchange_online",
		check: func(ctx context.Context, sink queue.AlertSink) error {
			mu.Lock()
			invocations++
			mu.Unlock()
			return nil
		},
	}
	require.NoError(t, sched.Register(m, 300*time.Second))

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// t=0: first tick always invokes
	sched.Tick(base)
	require.Equal(t, 1, invocations)

	entries := sched.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, base, entries[0].LastCheck)
	require.Equal(t, model.MonitorStateIdle, entries[0].State)

	// t=200: interval has not elapsed
	sched.Tick(base.Add(200 * time.Second))
	require.Equal(t, 1, invocations)
	require.Equal(t, base, sched.Entries()[0].LastCheck)

	// t=305: due again, lastCheck stamped with the new tick time
	sched.Tick(base.Add(305 * time.Second))
	require.Equal(t, 2, invocations)
	require.Equal(t, base.Add(305*time.Second), sched.Entries()[0].LastCheck)
}

func TestCheckScheduler_FailingMonitorDoesNotStopOthers(t *testing.T) {
	sched, _, dispatcher := newTestScheduler(t)

	broken := &fakeMonitor{
		service: "exchange_online",
		check: func(ctx context.Context, sink queue.AlertSink) error {
			panic("boom")
		},
	}
	healthy := &fakeMonitor{
		service: "sharepoint",
		check:   submitDraft("sharepoint", "Site Storage Above Limit"),
	}
	require.NoError(t, sched.Register(broken, time.Second))
	require.NoError(t, sched.Register(healthy, time.Second))

	base := time.Now()
	sched.Tick(base)

	// The healthy monitor's alert was accepted and dispatched
	require.Equal(t, []string{"Site Storage Above Limit"}, dispatcher.titles())

	// The broken monitor is back to Idle and due again on a later tick
	for _, entry := range sched.Entries() {
		require.Equal(t, model.MonitorStateIdle, entry.State)
	}
	sched.Tick(base.Add(2 * time.Second))
	require.Equal(t, base.Add(2*time.Second), sched.Entries()[0].LastCheck)
}

func TestCheckScheduler_FIFODispatch(t *testing.T) {
	sched, _, dispatcher := newTestScheduler(t)

	m := &fakeMonitor{
		service: "exchange_online",
		check: func(ctx context.Context, sink queue.AlertSink) error {
			for _, title := range []string{"Queue Buildup", "Mailbox Near Quota", "Connector Down"} {
				if _, err := sink.Submit(model.AlertDraft{
					Service:  "exchange_online",
					Severity: model.SeverityHigh,
					Title:    title,
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	require.NoError(t, sched.Register(m, time.Second))

	sched.Tick(time.Now())
	require.Equal(t, []string{"Queue Buildup", "Mailbox Near Quota", "Connector Down"}, dispatcher.titles())
}

func TestCheckScheduler_SlowCheckIsAbandoned(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	q := queue.NewDedupQueue(time.Hour, logger)
	dispatcher := &recordingDispatcher{}
	sched := New(q, dispatcher, Options{CheckTimeout: 100 * time.Millisecond}, logger)

	m := &fakeMonitor{
		service: "teams",
		check: func(ctx context.Context, sink queue.AlertSink) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	require.NoError(t, sched.Register(m, time.Second))

	start := time.Now()
	sched.Tick(start)
	require.Less(t, time.Since(start), time.Second, "tick must not block past the check timeout")

	require.Empty(t, dispatcher.titles())
	require.Equal(t, model.MonitorStateIdle, sched.Entries()[0].State)
}

func TestCheckScheduler_DuplicateRegistration(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	m := &fakeMonitor{service: "teams", check: submitDraft("teams", "x")}
	require.NoError(t, sched.Register(m, time.Second))

	err := sched.Register(&fakeMonitor{service: "teams", check: submitDraft("teams", "y")}, time.Second)
	require.ErrorIs(t, err, ErrDuplicateMonitor)
}

func TestCheckScheduler_RunRequiresMonitors(t *testing.T) {
	sched, _, _ := newTestScheduler(t)
	require.ErrorIs(t, sched.Run(context.Background()), ErrNoMonitors)
}

func TestCheckScheduler_RunStopsOnCancel(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	q := queue.NewDedupQueue(time.Hour, logger)
	dispatcher := &recordingDispatcher{}
	sched := New(q, dispatcher, Options{
		CheckTimeout: time.Second,
		TickInterval: 10 * time.Millisecond,
	}, logger)

	m := &fakeMonitor{
		service: "exchange_online",
		check:   submitDraft("exchange_online", "Queue Buildup"),
	}
	require.NoError(t, sched.Register(m, 10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	// Let at least one tick fire, then stop
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	require.NotEmpty(t, dispatcher.titles())
}
