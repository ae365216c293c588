package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/THEROER/DoubleLife/internal/core/port"
)

// SessionMetrics holds the Prometheus collectors for elevation sessions.
type SessionMetrics struct {
	Active        prometheus.Gauge
	Starts        *prometheus.CounterVec
	Ends          *prometheus.CounterVec
	Notifications *prometheus.CounterVec
}

// NewSessionMetrics registers the session collectors, reusing any already registered with reg.
func NewSessionMetrics(reg prometheus.Registerer) (*SessionMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	active, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "doublelife",
		Name:      "sessions_active",
		Help:      "Number of live elevation sessions.",
	}))
	if err != nil {
		return nil, err
	}

	starts, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doublelife",
		Name:      "session_starts_total",
		Help:      "Session start attempts partitioned by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	ends, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doublelife",
		Name:      "session_ends_total",
		Help:      "Ended sessions partitioned by reason.",
	}, []string{"reason"}))
	if err != nil {
		return nil, err
	}

	notifications, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doublelife",
		Name:      "notifications_total",
		Help:      "Webhook notifications partitioned by kind and result.",
	}, []string{"kind", "result"}))
	if err != nil {
		return nil, err
	}

	return &SessionMetrics{
		Active:        active,
		Starts:        starts,
		Ends:          ends,
		Notifications: notifications,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

func (m *SessionMetrics) SessionStarted(result string) {
	if m == nil {
		return
	}
	m.Starts.WithLabelValues(result).Inc()
}

func (m *SessionMetrics) SessionEnded(reason string) {
	if m == nil {
		return
	}
	m.Ends.WithLabelValues(reason).Inc()
}

func (m *SessionMetrics) ActiveSessions(n int) {
	if m == nil {
		return
	}
	m.Active.Set(float64(n))
}

func (m *SessionMetrics) Notification(kind, result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, result).Inc()
}

var _ port.MetricsRecorder = (*SessionMetrics)(nil)
