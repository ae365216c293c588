package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/THEROER/DoubleLife/internal/core/domain"
	"github.com/THEROER/DoubleLife/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T) (*EventPublisher, *fakeAsyncProducer) {
	t.Helper()
	asyncProducer := newFakeAsyncProducer()

	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "doublelife",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name:       "doublelife-service",
		Env:        "test",
		ServerName: "survival-1",
	}, zaptest.NewLogger(t))
	return publisher, asyncProducer
}

func receive(t *testing.T, p *fakeAsyncProducer) (*sarama.ProducerMessage, map[string]any) {
	t.Helper()
	select {
	case msg := <-p.input:
		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}
		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}
		return msg, envelope
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
	return nil, nil
}

func TestPublishSessionStarted(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	startedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	event := domain.SessionStartedEvent{
		EventID:        "event-1",
		PrincipalID:    "9b0b7c8e-5a43-4c38-9d0f-3f1d9a8e2c11",
		DisplayName:    "Steve",
		Profiles:       []string{"helper", "moderator"},
		Duration:       3600,
		TemporaryGroup: "doublelife-Steve",
		StartedAt:      startedAt,
		Metadata:       map[string]any{"source": "unit-test"},
	}

	if err := publisher.PublishSessionStarted(context.Background(), event); err != nil {
		t.Fatalf("PublishSessionStarted returned error: %v", err)
	}

	msg, envelope := receive(t, asyncProducer)
	if msg.Topic != EventSessionStarted {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	key, err := msg.Key.Encode()
	if err != nil || string(key) != event.PrincipalID {
		t.Fatalf("message not keyed by principal: %q, %v", key, err)
	}

	if got := envelope["event_type"]; got != EventSessionStarted {
		t.Fatalf("unexpected event_type: %v", got)
	}
	if got := envelope["principal_id"]; got != event.PrincipalID {
		t.Fatalf("unexpected principal_id: %v", got)
	}
	if got := envelope["timestamp"]; got != startedAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp: %v", got)
	}

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if payload["temporary_group"] != "doublelife-Steve" || payload["duration"] != float64(3600) {
		t.Fatalf("unexpected payload: %v", payload)
	}
	profiles, ok := payload["profiles"].([]any)
	if !ok || len(profiles) != 2 || profiles[0] != "helper" {
		t.Fatalf("unexpected profiles: %v", payload["profiles"])
	}
	metadata, ok := payload["metadata"].(map[string]any)
	if !ok || metadata["source"] != "unit-test" {
		t.Fatalf("metadata did not round-trip: %v", payload["metadata"])
	}

	envelopeMetadata, ok := envelope["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("envelope metadata not a map: %T", envelope["metadata"])
	}
	if envelopeMetadata["service"] != "doublelife-service" || envelopeMetadata["server"] != "survival-1" {
		t.Fatalf("unexpected envelope metadata: %v", envelopeMetadata)
	}
}

func TestPublishSessionEndedCarriesReason(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	endedAt := time.Date(2026, 5, 1, 13, 0, 0, 0, time.UTC)
	event := domain.SessionEndedEvent{
		PrincipalID: "9b0b7c8e-5a43-4c38-9d0f-3f1d9a8e2c11",
		DisplayName: "Steve",
		Reason:      domain.EndReasonExpiredOffline,
		StartedAt:   endedAt.Add(-time.Hour),
		EndedAt:     endedAt,
	}

	if err := publisher.PublishSessionEnded(context.Background(), event); err != nil {
		t.Fatalf("PublishSessionEnded returned error: %v", err)
	}

	msg, envelope := receive(t, asyncProducer)
	if msg.Topic != EventSessionEnded {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	if envelope["event_id"] == "" {
		t.Fatalf("expected generated event id")
	}
	payload := envelope["payload"].(map[string]any)
	if payload["reason"] != domain.EndReasonExpiredOffline {
		t.Fatalf("unexpected reason: %v", payload["reason"])
	}
	if payload["ended_at"] != endedAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected ended_at: %v", payload["ended_at"])
	}
}

func TestPublishRespectsContextCancellation(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)
	asyncProducer.input <- &sarama.ProducerMessage{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.PublishSessionRestored(ctx, domain.SessionRestoredEvent{PrincipalID: "x", RemainingSeconds: 30})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTopicNameKeepsPrefixedEventTypes(t *testing.T) {
	p := &Producer{cfg: config.KafkaSettings{TopicPrefix: "staging"}}
	if got := p.TopicName(EventSessionExpiredOffline); got != "staging.doublelife.session.expired_offline" {
		t.Fatalf("unexpected topic: %s", got)
	}

	p.cfg.TopicPrefix = "doublelife"
	if got := p.TopicName(EventSessionExpiredOffline); got != EventSessionExpiredOffline {
		t.Fatalf("unexpected topic: %s", got)
	}
}

func TestSaramaConfigFollowsDeliveryMode(t *testing.T) {
	async := newSaramaConfig(config.KafkaSettings{Async: true})
	if async.Producer.RequiredAcks != sarama.WaitForLocal || async.Producer.Idempotent {
		t.Fatalf("async mode should only wait for the leader, got acks=%d idempotent=%v",
			async.Producer.RequiredAcks, async.Producer.Idempotent)
	}
	if async.ClientID != clientID || !async.Producer.Return.Errors {
		t.Fatalf("unexpected client settings: id=%q return errors=%v", async.ClientID, async.Producer.Return.Errors)
	}

	durable := newSaramaConfig(config.KafkaSettings{Async: false})
	if durable.Producer.RequiredAcks != sarama.WaitForAll || !durable.Producer.Idempotent || durable.Net.MaxOpenRequests != 1 {
		t.Fatalf("durable mode should be idempotent with all acks, got acks=%d idempotent=%v inflight=%d",
			durable.Producer.RequiredAcks, durable.Producer.Idempotent, durable.Net.MaxOpenRequests)
	}
	if err := durable.Validate(); err != nil {
		t.Fatalf("durable config rejected by sarama: %v", err)
	}
}

func TestProducerCountsDeliveryFailures(t *testing.T) {
	fake := newFakeAsyncProducer()
	p := &Producer{producer: fake, logger: zaptest.NewLogger(t), done: make(chan struct{})}
	go p.handleErrors()
	defer close(p.done)

	fake.errors <- &sarama.ProducerError{
		Msg: &sarama.ProducerMessage{Topic: "doublelife.session.started", Key: sarama.StringEncoder("steve")},
		Err: sarama.ErrOutOfBrokers,
	}
	fake.errors <- &sarama.ProducerError{Err: sarama.ErrOutOfBrokers}

	deadline := time.Now().Add(2 * time.Second)
	for p.Failed() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 failures, got %d", p.Failed())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
