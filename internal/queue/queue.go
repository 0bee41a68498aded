package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/m365ops/watchtower/internal/model"
)

// evictionGrace is added to the suppression window before an index entry
// is dropped, so entries right at the boundary are never evicted early.
const evictionGrace = time.Minute

// Result is the outcome of a Submit call
type Result string

const (
	ResultAccepted   Result = "accepted"
	ResultSuppressed Result = "suppressed"
)

// Submission reports what happened to a submitted draft. Alert is set only
// when the draft was accepted.
type Submission struct {
	Result Result
	Alert  *model.Alert
}

// AlertSink is the interface monitors use to submit candidate alerts
type AlertSink interface {
	Submit(draft model.AlertDraft) (*Submission, error)
}

// AcceptListener is notified of every accepted alert, in acceptance order
type AcceptListener interface {
	AlertAccepted(alert *model.Alert)
}

// DedupQueue accepts candidate alerts, suppresses duplicates within the
// suppression window, and holds accepted alerts until they are drained for
// dispatch. The scan-and-insert in Submit is atomic under a single mutex so
// two concurrent submissions of the same (service, title) cannot both be
// accepted.
type DedupQueue struct {
	logger *zap.Logger
	window time.Duration

	mu           sync.Mutex
	lastAccepted map[dedupKey]time.Time
	pending      []*model.Alert
	listener     AcceptListener

	now func() time.Time
}

type dedupKey struct {
	service string
	title   string
}

// NewDedupQueue creates a deduplication queue with the given suppression window
func NewDedupQueue(window time.Duration, logger *zap.Logger) *DedupQueue {
	return &DedupQueue{
		logger:       logger.Named("dedup-queue"),
		window:       window,
		lastAccepted: make(map[dedupKey]time.Time),
		now:          time.Now,
	}
}

// SetListener registers a listener notified of every accepted alert.
// Must be called before the queue is shared across goroutines.
func (q *DedupQueue) SetListener(l AcceptListener) {
	q.listener = l
}

// Submit validates a draft and either accepts it into the queue or
// suppresses it as a duplicate. A *ValidationError is returned for drafts
// with an empty service or title or an unknown severity; the queue state is
// untouched and no correlation id is minted.
func (q *DedupQueue) Submit(draft model.AlertDraft) (*Submission, error) {
	if err := validateDraft(draft); err != nil {
		q.logger.Warn("Dropping malformed alert draft",
			zap.String("service", draft.Service),
			zap.String("title", draft.Title),
			zap.Error(err))
		return nil, err
	}

	q.mu.Lock()
	now := q.now()
	q.evictLocked(now)

	key := dedupKey{service: draft.Service, title: draft.Title}
	if accepted, ok := q.lastAccepted[key]; ok && now.Sub(accepted) < q.window {
		q.mu.Unlock()
		q.logger.Debug("Suppressed duplicate alert",
			zap.String("service", draft.Service),
			zap.String("title", draft.Title),
			zap.Time("previous", accepted))
		return &Submission{Result: ResultSuppressed}, nil
	}

	alert := &model.Alert{
		CorrelationID: uuid.New().String(),
		Timestamp:     now.UTC(),
		Service:       draft.Service,
		Severity:      draft.Severity,
		Title:         draft.Title,
		Description:   draft.Description,
		Context:       draft.Context,
	}
	q.lastAccepted[key] = now
	q.pending = append(q.pending, alert)
	listener := q.listener
	q.mu.Unlock()

	q.logger.Info("Accepted alert",
		zap.String("correlation_id", alert.CorrelationID),
		zap.String("service", alert.Service),
		zap.String("severity", string(alert.Severity)),
		zap.String("title", alert.Title))

	if listener != nil {
		listener.AlertAccepted(alert)
	}
	return &Submission{Result: ResultAccepted, Alert: alert}, nil
}

// Drain returns all pending accepted alerts in acceptance order and clears
// the pending list. The suppression index is unaffected.
func (q *DedupQueue) Drain() []*model.Alert {
	q.mu.Lock()
	defer q.mu.Unlock()

	alerts := q.pending
	q.pending = nil
	return alerts
}

// Pending returns the number of accepted alerts awaiting dispatch
func (q *DedupQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// IndexSize returns the number of (service, title) keys currently tracked
func (q *DedupQueue) IndexSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lastAccepted)
}

// evictLocked drops index entries older than the suppression window plus a
// small grace margin, keeping memory bounded. Caller holds q.mu.
func (q *DedupQueue) evictLocked(now time.Time) {
	for key, accepted := range q.lastAccepted {
		if now.Sub(accepted) > q.window+evictionGrace {
			delete(q.lastAccepted, key)
		}
	}
}
