package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/m365ops/watchtower/internal/model"
)

func testAlert() *model.Alert {
	return &model.Alert{
		CorrelationID: "b2f9f3a0-0000-4000-8000-000000000001",
		Timestamp:     time.Date(2026, 3, 10, 14, 30, 5, 0, time.UTC),
		Service:       "Exchange Online",
		Severity:      model.SeverityCritical,
		Title:         "Mail Queue Buildup Detected",
		Description:   "Outbound queue exceeds 500 messages.",
	}
}

func TestRender_FieldBlock(t *testing.T) {
	policy, err := NewPolicy(testChannels(), map[string][]string{
		"critical": {"@m365-oncall"},
	})
	require.NoError(t, err)

	route, _ := policy.Resolve(model.SeverityCritical)
	payload := Render(testAlert(), route)

	require.Equal(t, "#alerts-critical", payload.Channel)
	require.Equal(t, "🚨 Mail Queue Buildup Detected", payload.Title)
	require.Equal(t, "Outbound queue exceeds 500 messages.", payload.Text)
	require.Equal(t, []string{"@m365-oncall"}, payload.Mentions)

	require.Len(t, payload.Fields, 4)
	require.Equal(t, "Exchange Online", payload.Fields[0].Value)
	require.Equal(t, "CRITICAL", payload.Fields[1].Value)
	require.Equal(t, "2026-03-10 14:30:05", payload.Fields[2].Value)
	require.Equal(t, "b2f9f3a0-0000-4000-8000-000000000001", payload.Fields[3].Value)
}

func TestRender_EmptyMentionsOmitted(t *testing.T) {
	policy, err := NewPolicy(testChannels(), nil)
	require.NoError(t, err)

	alert := testAlert()
	alert.Severity = model.SeverityMedium
	route, _ := policy.Resolve(model.SeverityMedium)
	payload := Render(alert, route)
	require.Empty(t, payload.Mentions)

	// The mentions key disappears from the wire form entirely
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NotContains(t, string(data), "mentions")
}

func TestDispatcher_DeliversToWebhook(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	var received Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	policy, err := NewPolicy(testChannels(), map[string][]string{
		"critical": {"@m365-oncall"},
	})
	require.NoError(t, err)

	sink := NewSlackSink(server.URL, 5*time.Second, logger)
	dispatcher := NewDispatcher(policy, logger, sink)

	result := dispatcher.Dispatch(context.Background(), testAlert())
	require.True(t, result.Delivered)
	require.Empty(t, result.Reason)
	require.Equal(t, "🚨 Mail Queue Buildup Detected", received.Title)
	require.Equal(t, []string{"@m365-oncall"}, received.Mentions)
}

func TestDispatcher_DeliveryFailureIsContained(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "channel_not_found", http.StatusNotFound)
	}))
	defer server.Close()

	policy, err := NewPolicy(testChannels(), nil)
	require.NoError(t, err)

	sink := NewSlackSink(server.URL, 5*time.Second, logger)
	dispatcher := NewDispatcher(policy, logger, sink)

	result := dispatcher.Dispatch(context.Background(), testAlert())
	require.False(t, result.Delivered)
	require.NotEmpty(t, result.Reason)
}

func TestDispatcher_UnreachableSink(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	// A server that is already closed
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	policy, err := NewPolicy(testChannels(), nil)
	require.NoError(t, err)

	sink := NewSlackSink(server.URL, time.Second, logger)
	dispatcher := NewDispatcher(policy, logger, sink)

	result := dispatcher.Dispatch(context.Background(), testAlert())
	require.False(t, result.Delivered)
	require.NotEmpty(t, result.Reason)
}

func TestFormatEmailBody(t *testing.T) {
	payload := &Payload{
		Title:    "⚠️ Slow Endpoint Response",
		Text:     "Probe took 8s.",
		Fields:   []Field{{Title: "Service", Value: "teams"}},
		Mentions: []string{"@m365-admins"},
	}

	body := formatEmailBody(payload)
	require.Contains(t, body, "Probe took 8s.")
	require.Contains(t, body, "Service: teams")
	require.Contains(t, body, "Notify: @m365-admins")

	// No mention line when there are no mentions
	payload.Mentions = nil
	require.NotContains(t, formatEmailBody(payload), "Notify:")
}
