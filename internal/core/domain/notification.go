package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Embed colors used for notifications.
const (
	ColorStart  = 0x00FF00
	ColorEnd    = 0xFF0000
	ColorAction = 0xFFFF00
)

// Notification is a single rendered message for the notification target.
type Notification struct {
	// PrincipalID selects the avatar; uuid.Nil means a system notice.
	PrincipalID uuid.UUID
	Content     string
	Color       int
	Timestamp   time.Time
}

// RateLimitError is returned by notification senders when the target throttles requests.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("notification rate limited, retry after %s", e.RetryAfter)
}

// Is makes errors.Is(err, ErrNotificationRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrNotificationRateLimited
}

// RetryAfterOf extracts the server supplied retry delay from err, if any.
func RetryAfterOf(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
