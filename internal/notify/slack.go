package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SlackSink posts rendered payloads to a Slack incoming webhook
type SlackSink struct {
	logger     *zap.Logger
	webhookURL string
	httpClient *http.Client
}

// NewSlackSink creates a Slack webhook sink with the given request timeout
func NewSlackSink(webhookURL string, timeout time.Duration, logger *zap.Logger) *SlackSink {
	return &SlackSink{
		logger:     logger.Named("slack-sink"),
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Deliver posts the payload as JSON to the webhook. A non-2xx response is a
// delivery failure.
func (s *SlackSink) Deliver(ctx context.Context, payload *Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook rejected payload: %s: %s", resp.Status, string(msg))
	}
	return nil
}
