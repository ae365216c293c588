package port

// Result labels for MetricsRecorder counters.
const (
	ResultOK          = "ok"
	ResultRejected    = "rejected"
	ResultError       = "error"
	ResultRateLimited = "rate_limited"
)

// MetricsRecorder receives session and notification counters.
type MetricsRecorder interface {
	SessionStarted(result string)
	SessionEnded(reason string)
	ActiveSessions(n int)
	Notification(kind, result string)
}
