package port

import (
	"context"

	"github.com/THEROER/DoubleLife/internal/core/domain"
)

// EventPublisher publishes session lifecycle events to the message bus.
type EventPublisher interface {
	PublishSessionStarted(ctx context.Context, event domain.SessionStartedEvent) error
	PublishSessionEnded(ctx context.Context, event domain.SessionEndedEvent) error
	PublishSessionExpiredOffline(ctx context.Context, event domain.SessionExpiredOfflineEvent) error
	PublishSessionRestored(ctx context.Context, event domain.SessionRestoredEvent) error
}
