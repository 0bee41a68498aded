package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/m365ops/watchtower/internal/guidance"
	"github.com/m365ops/watchtower/internal/model"
	"github.com/m365ops/watchtower/internal/queue"
)

// defaultSlowThreshold is the response time above which an endpoint is
// reported as slow
const defaultSlowThreshold = 5 * time.Second

// EndpointMonitor probes one service's HTTP health endpoint. Unreachable
// endpoints raise critical alerts, error responses high, slow responses
// medium.
type EndpointMonitor struct {
	logger        *zap.Logger
	service       string
	url           string
	slowThreshold time.Duration
	httpClient    *http.Client
}

// NewEndpointMonitor creates an HTTP health probe for a service endpoint
func NewEndpointMonitor(service, url string, logger *zap.Logger) *EndpointMonitor {
	return &EndpointMonitor{
		logger:        logger.Named("endpoint-monitor").With(zap.String("service", service)),
		service:       service,
		url:           url,
		slowThreshold: defaultSlowThreshold,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Service implements Monitor.Service
func (m *EndpointMonitor) Service() string {
	return m.service
}

// Check probes the endpoint once and submits alerts for failures
func (m *EndpointMonitor) Check(ctx context.Context, sink queue.AlertSink) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		summary := fmt.Sprintf("Health probe of %s failed: %v", m.url, err)
		m.submit(sink, model.AlertDraft{
			Service:     m.service,
			Severity:    model.SeverityCritical,
			Title:       "Service Endpoint Unreachable",
			Description: guidance.Describe(summary, guidance.Lookup("endpoint_unreachable")),
			Context: map[string]string{
				"url":   m.url,
				"error": err.Error(),
			},
		})
		return nil
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	m.logger.Debug("Probed endpoint",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	switch {
	case resp.StatusCode >= 400:
		summary := fmt.Sprintf("Health probe of %s returned HTTP %d.", m.url, resp.StatusCode)
		m.submit(sink, model.AlertDraft{
			Service:     m.service,
			Severity:    model.SeverityHigh,
			Title:       "Service Endpoint Returning Errors",
			Description: guidance.Describe(summary, guidance.Lookup("endpoint_unreachable")),
			Context: map[string]string{
				"url":    m.url,
				"status": fmt.Sprintf("%d", resp.StatusCode),
			},
		})
	case elapsed > m.slowThreshold:
		m.submit(sink, model.AlertDraft{
			Service:     m.service,
			Severity:    model.SeverityMedium,
			Title:       "Slow Endpoint Response",
			Description: fmt.Sprintf("Health probe of %s took %s, above the %s threshold.", m.url, elapsed.Round(time.Millisecond), m.slowThreshold),
			Context: map[string]string{
				"url":     m.url,
				"elapsed": elapsed.String(),
			},
		})
	}

	return nil
}

func (m *EndpointMonitor) submit(sink queue.AlertSink, draft model.AlertDraft) {
	if _, err := sink.Submit(draft); err != nil {
		m.logger.Warn("Alert rejected", zap.String("title", draft.Title), zap.Error(err))
	}
}
