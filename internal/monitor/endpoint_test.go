package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/m365ops/watchtower/internal/model"
	"github.com/m365ops/watchtower/internal/queue"
)

// captureSink records submitted drafts without dedup
type captureSink struct {
	drafts []model.AlertDraft
}

func (s *captureSink) Submit(draft model.AlertDraft) (*queue.Submission, error) {
	s.drafts = append(s.drafts, draft)
	return &queue.Submission{Result: queue.ResultAccepted}, nil
}

func TestEndpointMonitor_HealthyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logger, _ := zap.NewDevelopment()
	m := NewEndpointMonitor("exchange_online", srv.URL, logger)
	sink := &captureSink{}

	require.NoError(t, m.Check(context.Background(), sink))
	require.Empty(t, sink.drafts)
}

func TestEndpointMonitor_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	logger, _ := zap.NewDevelopment()
	m := NewEndpointMonitor("sharepoint", srv.URL, logger)
	sink := &captureSink{}

	require.NoError(t, m.Check(context.Background(), sink))
	require.Len(t, sink.drafts, 1)

	draft := sink.drafts[0]
	require.Equal(t, "sharepoint", draft.Service)
	require.Equal(t, model.SeverityHigh, draft.Severity)
	require.Equal(t, "Service Endpoint Returning Errors", draft.Title)
	require.Equal(t, "500", draft.Context["status"])
	require.Contains(t, draft.Description, "HTTP 500")
}

func TestEndpointMonitor_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	logger, _ := zap.NewDevelopment()
	m := NewEndpointMonitor("teams", url, logger)
	sink := &captureSink{}

	require.NoError(t, m.Check(context.Background(), sink), "probe failures become alerts, not check errors")
	require.Len(t, sink.drafts, 1)

	draft := sink.drafts[0]
	require.Equal(t, model.SeverityCritical, draft.Severity)
	require.Equal(t, "Service Endpoint Unreachable", draft.Title)
	require.Contains(t, draft.Description, "Remediation steps:")
	require.NotEmpty(t, draft.Context["error"])
}

func TestEndpointMonitor_SlowResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logger, _ := zap.NewDevelopment()
	m := NewEndpointMonitor("teams", srv.URL, logger)
	m.slowThreshold = 0
	sink := &captureSink{}

	require.NoError(t, m.Check(context.Background(), sink))
	require.Len(t, sink.drafts, 1)

	draft := sink.drafts[0]
	require.Equal(t, model.SeverityMedium, draft.Severity)
	require.Equal(t, "Slow Endpoint Response", draft.Title)
}
