package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/m365ops/watchtower/internal/notify"
	"github.com/m365ops/watchtower/internal/storage"
)

// summaryWindow is how far back each summary report looks
const summaryWindow = 24 * time.Hour

// Summarizer is the slice of the alert history the reporter reads
type Summarizer interface {
	Summarize(ctx context.Context, since time.Time) (*storage.Summary, error)
}

// Reporter periodically builds an alert summary from the history journal,
// logs it, and optionally posts it to a notification sink
type Reporter struct {
	logger  *zap.Logger
	history Summarizer
	sink    notify.Sink
	channel string
	cron    *cron.Cron
	spec    string
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// NewReporter creates a summary reporter. The sink may be nil, in which case
// summaries are only logged. The spec is a standard cron expression.
func NewReporter(spec string, history Summarizer, sink notify.Sink, channel string, logger *zap.Logger) *Reporter {
	named := logger.Named("reporter")
	return &Reporter{
		logger:  named,
		history: history,
		sink:    sink,
		channel: channel,
		spec:    spec,
		cron: cron.New(
			cron.WithChain(cron.Recover(&cronLogger{logger: named.Named("cron")})),
		),
	}
}

// Start schedules the summary job and starts the cron runner
func (r *Reporter) Start() error {
	if _, err := r.cron.AddFunc(r.spec, func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			r.logger.Error("Summary report failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule summary report: %w", err)
	}

	r.cron.Start()
	r.logger.Info("Reporter started", zap.String("schedule", r.spec))
	return nil
}

// Stop stops the cron runner and waits for a running job to finish
func (r *Reporter) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// RunOnce builds one summary over the trailing window, logs it, and posts
// it to the sink when one is configured
func (r *Reporter) RunOnce(ctx context.Context) (*storage.Summary, error) {
	since := time.Now().Add(-summaryWindow)
	summary, err := r.history.Summarize(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize alert history: %w", err)
	}

	r.logger.Info("Alert summary",
		zap.Time("since", summary.Since),
		zap.Int("total", summary.Total),
		zap.Any("by_severity", summary.BySeverity),
		zap.Any("by_service", summary.ByService))

	if r.sink != nil {
		if err := r.sink.Deliver(ctx, r.renderPayload(summary)); err != nil {
			r.logger.Error("Failed to post summary report", zap.Error(err))
		}
	}
	return summary, nil
}

// renderPayload formats the summary as an informational notification
func (r *Reporter) renderPayload(summary *storage.Summary) *notify.Payload {
	return &notify.Payload{
		Channel: r.channel,
		Color:   "good",
		Title:   "📊 Daily Alert Summary",
		Text:    fmt.Sprintf("%d alerts accepted in the last 24 hours.", summary.Total),
		Fields: []notify.Field{
			{Title: "By severity", Value: formatCounts(summary.BySeverity), Short: true},
			{Title: "By service", Value: formatCounts(summary.ByService), Short: true},
		},
	}
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", key, counts[key]))
	}
	return strings.Join(parts, "\n")
}
