package domain

import "time"

// End reasons carried on SessionEndedEvent.
const (
	EndReasonManual         = "manual"
	EndReasonExpired        = "expired"
	EndReasonExpiredOffline = "expired_offline"
)

// SessionStartedEvent represents the payload for doublelife.session.started messages.
type SessionStartedEvent struct {
	EventID        string
	PrincipalID    string
	DisplayName    string
	Profiles       []string
	Duration       int
	TemporaryGroup string
	StartedAt      time.Time
	Metadata       map[string]any
}

// SessionEndedEvent represents the payload for doublelife.session.ended messages.
type SessionEndedEvent struct {
	EventID     string
	PrincipalID string
	DisplayName string
	Profiles    []string
	Reason      string
	StartedAt   time.Time
	EndedAt     time.Time
	Metadata    map[string]any
}

// SessionExpiredOfflineEvent represents the payload for doublelife.session.expired_offline messages.
// Emitted when a session runs out while the principal is away; revocation waits for reconnect.
type SessionExpiredOfflineEvent struct {
	EventID     string
	PrincipalID string
	DisplayName string
	Profiles    []string
	ExpiredAt   time.Time
	Metadata    map[string]any
}

// SessionRestoredEvent represents the payload for doublelife.session.restored messages.
type SessionRestoredEvent struct {
	EventID          string
	PrincipalID      string
	DisplayName      string
	RemainingSeconds int
	RestoredAt       time.Time
	Metadata         map[string]any
}
