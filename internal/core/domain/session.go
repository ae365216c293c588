package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Session represents a temporary elevation granted to a principal.
type Session struct {
	PrincipalID    uuid.UUID
	DisplayName    string
	StartTime      time.Time
	Duration       int
	ActiveProfiles []string
	Snapshot       Snapshot
	TemporaryGroup string
	Active         bool
	EndTime        *time.Time
}

// NewSession builds an active session. Profiles are copied and sorted so iteration order is stable.
func NewSession(principalID uuid.UUID, displayName string, start time.Time, duration int, profiles []string) Session {
	active := slices.Clone(profiles)
	slices.Sort(active)
	if duration < 0 {
		duration = 0
	}
	return Session{
		PrincipalID:    principalID,
		DisplayName:    displayName,
		StartTime:      start,
		Duration:       duration,
		ActiveProfiles: active,
		Active:         true,
	}
}

// Unbounded reports whether the session never expires on its own.
func (s Session) Unbounded() bool {
	return s.Duration == 0
}

// ExpiresAt returns the expiry instant; zero for unbounded sessions.
func (s Session) ExpiresAt() time.Time {
	if s.Unbounded() {
		return time.Time{}
	}
	return s.StartTime.Add(time.Duration(s.Duration) * time.Second)
}

// IsExpired reports whether the session's time budget is exhausted at the supplied moment.
func (s Session) IsExpired(now time.Time) bool {
	if s.Unbounded() {
		return false
	}
	return now.After(s.ExpiresAt())
}

// RemainingSeconds returns the whole seconds left, never negative. Unbounded sessions report their
// (zero) duration.
func (s Session) RemainingSeconds(now time.Time) int {
	if s.Unbounded() {
		return 0
	}
	elapsed := int(now.Sub(s.StartTime) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := s.Duration - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Remaining returns the time left as a duration.
func (s Session) Remaining(now time.Time) time.Duration {
	return time.Duration(s.RemainingSeconds(now)) * time.Second
}

// FormattedRemaining renders the remaining time as HH:MM:SS or MM:SS.
func (s Session) FormattedRemaining(now time.Time) string {
	if s.Unbounded() {
		return "Unlimited"
	}
	return FormatClock(s.RemainingSeconds(now))
}

// End marks the session inactive. Returns true when the session changed state.
func (s *Session) End(at time.Time) bool {
	if s.EndTime != nil {
		return false
	}
	s.Active = false
	s.EndTime = &at
	return true
}

// Clone returns a deep copy safe to mutate independently.
func (s Session) Clone() Session {
	out := s
	out.ActiveProfiles = slices.Clone(s.ActiveProfiles)
	out.Snapshot = s.Snapshot.Clone()
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	return out
}

// FormatClock renders seconds as HH:MM:SS when at least one hour is left, MM:SS otherwise.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// TemporaryGroupName derives the per-session grant group name.
func TemporaryGroupName(prefix, displayName string) string {
	return prefix + "-" + displayName
}
