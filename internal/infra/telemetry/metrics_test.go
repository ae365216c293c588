package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/THEROER/DoubleLife/internal/core/port"
)

func TestSessionMetricsRecords(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewSessionMetrics(registry)
	if err != nil {
		t.Fatalf("NewSessionMetrics returned error: %v", err)
	}

	m.SessionStarted(port.ResultOK)
	m.SessionStarted(port.ResultOK)
	m.SessionStarted(port.ResultRejected)
	m.SessionEnded("expired")
	m.ActiveSessions(3)
	m.Notification("action", port.ResultRateLimited)

	if got := testutil.ToFloat64(m.Starts.WithLabelValues(port.ResultOK)); got != 2 {
		t.Fatalf("expected 2 ok starts, got %f", got)
	}
	if got := testutil.ToFloat64(m.Ends.WithLabelValues("expired")); got != 1 {
		t.Fatalf("expected 1 expired end, got %f", got)
	}
	if got := testutil.ToFloat64(m.Active); got != 3 {
		t.Fatalf("expected active gauge 3, got %f", got)
	}
	if got := testutil.ToFloat64(m.Notifications.WithLabelValues("action", port.ResultRateLimited)); got != 1 {
		t.Fatalf("expected 1 rate limited notification, got %f", got)
	}
}

func TestSessionMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewSessionMetrics(registry)
	if err != nil {
		t.Fatalf("first NewSessionMetrics returned error: %v", err)
	}
	second, err := NewSessionMetrics(registry)
	if err != nil {
		t.Fatalf("second NewSessionMetrics returned error: %v", err)
	}

	first.SessionEnded("manual")
	if got := testutil.ToFloat64(second.Ends.WithLabelValues("manual")); got != 1 {
		t.Fatalf("expected shared collector, got %f", got)
	}
}

func TestNilSessionMetricsIsNoop(t *testing.T) {
	var m *SessionMetrics
	m.SessionStarted(port.ResultOK)
	m.SessionEnded("manual")
	m.ActiveSessions(1)
	m.Notification("start", port.ResultOK)
}
