package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/core/port"
	"github.com/THEROER/DoubleLife/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, also used as topic names under the configured prefix.
const (
	EventSessionStarted        = "doublelife.session.started"
	EventSessionEnded          = "doublelife.session.ended"
	EventSessionExpiredOffline = "doublelife.session.expired_offline"
	EventSessionRestored       = "doublelife.session.restored"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID     string           `json:"event_id"`
	EventType   string           `json:"event_type"`
	PrincipalID string           `json:"principal_id,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Version     string           `json:"version"`
	Payload     any              `json:"payload"`
	Metadata    envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, principalID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
		"server":      p.appCfg.ServerName,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:     id,
		EventType:   eventType,
		PrincipalID: principalID,
		Timestamp:   ts.UTC(),
		Version:     schemaVersion,
		Payload:     payload,
		Metadata:    metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	// Keyed by principal so one principal's events stay ordered within a partition.
	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(principalID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSessionStarted publishes doublelife.session.started events.
func (p *EventPublisher) PublishSessionStarted(ctx context.Context, event domain.SessionStartedEvent) error {
	payload := struct {
		PrincipalID    string         `json:"principal_id"`
		DisplayName    string         `json:"display_name"`
		Profiles       []string       `json:"profiles"`
		Duration       int            `json:"duration"`
		TemporaryGroup string         `json:"temporary_group"`
		StartedAt      time.Time      `json:"started_at"`
		Metadata       map[string]any `json:"metadata,omitempty"`
	}{
		PrincipalID:    event.PrincipalID,
		DisplayName:    event.DisplayName,
		Profiles:       event.Profiles,
		Duration:       event.Duration,
		TemporaryGroup: event.TemporaryGroup,
		StartedAt:      event.StartedAt.UTC(),
		Metadata:       event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventSessionStarted, event.PrincipalID, event.StartedAt, payload)
}

// PublishSessionEnded publishes doublelife.session.ended events.
func (p *EventPublisher) PublishSessionEnded(ctx context.Context, event domain.SessionEndedEvent) error {
	payload := struct {
		PrincipalID string         `json:"principal_id"`
		DisplayName string         `json:"display_name"`
		Profiles    []string       `json:"profiles"`
		Reason      string         `json:"reason"`
		StartedAt   time.Time      `json:"started_at"`
		EndedAt     time.Time      `json:"ended_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		PrincipalID: event.PrincipalID,
		DisplayName: event.DisplayName,
		Profiles:    event.Profiles,
		Reason:      event.Reason,
		StartedAt:   event.StartedAt.UTC(),
		EndedAt:     event.EndedAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventSessionEnded, event.PrincipalID, event.EndedAt, payload)
}

// PublishSessionExpiredOffline publishes doublelife.session.expired_offline events.
func (p *EventPublisher) PublishSessionExpiredOffline(ctx context.Context, event domain.SessionExpiredOfflineEvent) error {
	payload := struct {
		PrincipalID string         `json:"principal_id"`
		DisplayName string         `json:"display_name"`
		Profiles    []string       `json:"profiles"`
		ExpiredAt   time.Time      `json:"expired_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		PrincipalID: event.PrincipalID,
		DisplayName: event.DisplayName,
		Profiles:    event.Profiles,
		ExpiredAt:   event.ExpiredAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventSessionExpiredOffline, event.PrincipalID, event.ExpiredAt, payload)
}

// PublishSessionRestored publishes doublelife.session.restored events.
func (p *EventPublisher) PublishSessionRestored(ctx context.Context, event domain.SessionRestoredEvent) error {
	payload := struct {
		PrincipalID      string         `json:"principal_id"`
		DisplayName      string         `json:"display_name"`
		RemainingSeconds int            `json:"remaining_seconds"`
		RestoredAt       time.Time      `json:"restored_at"`
		Metadata         map[string]any `json:"metadata,omitempty"`
	}{
		PrincipalID:      event.PrincipalID,
		DisplayName:      event.DisplayName,
		RemainingSeconds: event.RemainingSeconds,
		RestoredAt:       event.RestoredAt.UTC(),
		Metadata:         event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventSessionRestored, event.PrincipalID, event.RestoredAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
