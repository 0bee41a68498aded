package bus

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/m365ops/watchtower/internal/model"
)

const (
	alertStreamName    = "ALERTS"
	alertSubjectPrefix = "alert.accepted."
)

// Mirror publishes every accepted alert to NATS for external consumers such
// as dashboards. It is publish-only and strictly best-effort: a publish
// failure is logged and the alert's notification path is unaffected.
type Mirror struct {
	logger *zap.Logger
	js     nats.JetStreamContext
}

// NewMirror creates an accepted-alert mirror on the given JetStream context
func NewMirror(js nats.JetStreamContext, logger *zap.Logger) *Mirror {
	return &Mirror{
		logger: logger.Named("alert-mirror"),
		js:     js,
	}
}

// Start ensures the alert stream exists
func (m *Mirror) Start() error {
	stream, err := m.js.StreamInfo(alertStreamName)
	if err != nil && err != nats.ErrStreamNotFound {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	if stream == nil {
		_, err = m.js.AddStream(&nats.StreamConfig{
			Name:     alertStreamName,
			Subjects: []string{alertSubjectPrefix + "*"},
			Storage:  nats.MemoryStorage,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		m.logger.Info("Created alert stream", zap.String("name", alertStreamName))
	}
	return nil
}

// AlertAccepted implements queue.AcceptListener by publishing the alert as
// JSON to alert.accepted.<severity>
func (m *Mirror) AlertAccepted(alert *model.Alert) {
	data, err := json.Marshal(alert)
	if err != nil {
		m.logger.Error("Failed to marshal alert",
			zap.String("correlation_id", alert.CorrelationID),
			zap.Error(err))
		return
	}

	subject := alertSubjectPrefix + string(alert.Severity)
	if _, err := m.js.Publish(subject, data); err != nil {
		m.logger.Error("Failed to publish alert",
			zap.String("correlation_id", alert.CorrelationID),
			zap.String("subject", subject),
			zap.Error(err))
		return
	}

	m.logger.Debug("Mirrored accepted alert",
		zap.String("correlation_id", alert.CorrelationID),
		zap.String("subject", subject))
}
