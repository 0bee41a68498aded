package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/m365ops/watchtower/internal/model"
)

// timestampLayout is the fixed UTC timestamp format used in rendered payloads
const timestampLayout = "2006-01-02 15:04:05"

// Field is one entry of a payload's fixed-order field block
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Payload is the rendered outbound notification message
type Payload struct {
	Channel  string   `json:"channel"`
	Color    string   `json:"color"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Fields   []Field  `json:"fields"`
	Mentions []string `json:"mentions,omitempty"`
}

// Sink delivers a rendered payload to an external notification service
type Sink interface {
	Deliver(ctx context.Context, payload *Payload) error
}

// Dispatcher resolves an alert's severity through the policy, renders the
// channel message, and delivers it. Delivery failures are caught, logged,
// and reported as a failed DeliveryResult; they never propagate and the
// alert is never re-enqueued (at-most-once delivery attempt).
type Dispatcher struct {
	logger *zap.Logger
	policy *Policy
	sinks  []Sink
}

// NewDispatcher creates a dispatcher delivering to the given sinks
func NewDispatcher(policy *Policy, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		logger: logger.Named("dispatcher"),
		policy: policy,
		sinks:  sinks,
	}
}

// Dispatch renders and delivers one alert, making exactly one delivery
// attempt per sink
func (d *Dispatcher) Dispatch(ctx context.Context, alert *model.Alert) model.DeliveryResult {
	route, ok := d.policy.Resolve(alert.Severity)
	if !ok {
		d.logger.Error("No route for alert severity",
			zap.String("correlation_id", alert.CorrelationID),
			zap.String("severity", string(alert.Severity)))
		return model.DeliveryResult{Reason: fmt.Sprintf("no route for severity %q", alert.Severity)}
	}

	payload := Render(alert, route)

	result := model.DeliveryResult{Delivered: true}
	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, payload); err != nil {
			d.logger.Error("Notification delivery failed",
				zap.String("correlation_id", alert.CorrelationID),
				zap.String("channel", payload.Channel),
				zap.Error(err))
			result = model.DeliveryResult{Reason: err.Error()}
		}
	}

	if result.Delivered {
		d.logger.Info("Notification delivered",
			zap.String("correlation_id", alert.CorrelationID),
			zap.String("channel", payload.Channel),
			zap.String("severity", string(alert.Severity)))
	}
	return result
}

// Render builds the channel message for an alert: severity-flagged title,
// description text, and a fixed-order field block of service, upper-cased
// severity, UTC timestamp, and correlation id.
func Render(alert *model.Alert, route Route) *Payload {
	return &Payload{
		Channel: route.Channel,
		Color:   route.Color,
		Title:   fmt.Sprintf("%s %s", route.Flag, alert.Title),
		Text:    alert.Description,
		Fields: []Field{
			{Title: "Service", Value: alert.Service, Short: true},
			{Title: "Severity", Value: strings.ToUpper(string(alert.Severity)), Short: true},
			{Title: "Timestamp", Value: alert.Timestamp.UTC().Format(timestampLayout), Short: true},
			{Title: "Correlation ID", Value: alert.CorrelationID, Short: true},
		},
		Mentions: route.Mentions,
	}
}
