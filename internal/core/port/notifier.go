package port

import (
	"context"

	"github.com/THEROER/DoubleLife/internal/core/domain"
)

// WebhookSender delivers notifications to the external chat target.
// Rate limited calls return an error matching domain.ErrNotificationRateLimited.
type WebhookSender interface {
	// Send posts a new message. When wait is true the returned id can be passed to Edit.
	Send(ctx context.Context, msg domain.Notification, wait bool) (string, error)
	Edit(ctx context.Context, messageID string, msg domain.Notification) error
}

// Notifier renders and queues session notifications without blocking on network I/O.
type Notifier interface {
	SessionStarted(session domain.Session) error
	// SessionEnded announces an ended session; reason is one of the domain.EndReason values.
	SessionEnded(session domain.Session, reason string) error
	Action(event domain.ActionEvent) error
	SystemEnabled(serverName string) error
	SystemDisabled(serverName string) error
	Close()
}
