package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, principalID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("principal_id", principalID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishSessionStarted logs doublelife.session.started events.
func (p *StubPublisher) PublishSessionStarted(_ context.Context, event domain.SessionStartedEvent) error {
	payload := map[string]any{
		"display_name":    event.DisplayName,
		"profiles":        event.Profiles,
		"duration":        event.Duration,
		"temporary_group": event.TemporaryGroup,
		"metadata":        event.Metadata,
	}
	p.logEvent(EventSessionStarted, event.PrincipalID, event.StartedAt, payload)
	return nil
}

// PublishSessionEnded logs doublelife.session.ended events.
func (p *StubPublisher) PublishSessionEnded(_ context.Context, event domain.SessionEndedEvent) error {
	payload := map[string]any{
		"display_name": event.DisplayName,
		"profiles":     event.Profiles,
		"reason":       event.Reason,
		"started_at":   event.StartedAt,
		"metadata":     event.Metadata,
	}
	p.logEvent(EventSessionEnded, event.PrincipalID, event.EndedAt, payload)
	return nil
}

// PublishSessionExpiredOffline logs doublelife.session.expired_offline events.
func (p *StubPublisher) PublishSessionExpiredOffline(_ context.Context, event domain.SessionExpiredOfflineEvent) error {
	payload := map[string]any{
		"display_name": event.DisplayName,
		"profiles":     event.Profiles,
		"metadata":     event.Metadata,
	}
	p.logEvent(EventSessionExpiredOffline, event.PrincipalID, event.ExpiredAt, payload)
	return nil
}

// PublishSessionRestored logs doublelife.session.restored events.
func (p *StubPublisher) PublishSessionRestored(_ context.Context, event domain.SessionRestoredEvent) error {
	payload := map[string]any{
		"display_name":      event.DisplayName,
		"remaining_seconds": event.RemainingSeconds,
		"metadata":          event.Metadata,
	}
	p.logEvent(EventSessionRestored, event.PrincipalID, event.RestoredAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
