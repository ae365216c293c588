package kafka

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/THEROER/DoubleLife/internal/infra/config"
)

const clientID = "doublelife"

// Producer carries session audit events to Kafka. Messages are keyed by principal, so the hash
// partitioner keeps one principal's events in order.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger
	cfg      config.KafkaSettings
	failed   atomic.Uint64
	done     chan struct{}
}

func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("create kafka producer: no brokers configured")
	}

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		logger:   logger,
		cfg:      cfg,
		done:     make(chan struct{}),
	}
	go p.handleErrors()

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
		zap.Bool("async", cfg.Async),
	)
	return p, nil
}

// newSaramaConfig trades durability for latency when cfg.Async is set: the leader ack is enough.
// Otherwise every in-sync replica must ack and the producer is idempotent.
func newSaramaConfig(cfg config.KafkaSettings) *sarama.Config {
	c := sarama.NewConfig()
	c.Version = sarama.V3_5_0_0
	c.ClientID = clientID

	c.Producer.Compression = sarama.CompressionSnappy
	c.Producer.Partitioner = sarama.NewHashPartitioner
	c.Producer.Flush.Frequency = 100 * time.Millisecond
	c.Producer.Flush.Messages = 100
	c.Producer.Retry.Max = 3
	c.Producer.Return.Successes = false
	c.Producer.Return.Errors = true

	if cfg.Async {
		c.Producer.RequiredAcks = sarama.WaitForLocal
	} else {
		c.Producer.RequiredAcks = sarama.WaitForAll
		c.Producer.Idempotent = true
		c.Net.MaxOpenRequests = 1
	}

	c.Metadata.Retry.Max = 3
	c.Metadata.Retry.Backoff = 250 * time.Millisecond
	return c
}

// handleErrors drains producer errors so the async producer never blocks on them.
func (p *Producer) handleErrors() {
	for {
		select {
		case err, ok := <-p.producer.Errors():
			if !ok {
				return
			}
			if err == nil {
				continue
			}
			p.failed.Add(1)
			fields := []zap.Field{zap.Error(err.Err)}
			if err.Msg != nil {
				fields = append(fields, zap.String("topic", err.Msg.Topic))
				if err.Msg.Key != nil {
					if key, encErr := err.Msg.Key.Encode(); encErr == nil {
						fields = append(fields, zap.String("principal_id", string(key)))
					}
				}
			}
			p.logger.Error("session event not delivered", fields...)
		case <-p.done:
			return
		}
	}
}

func (p *Producer) Producer() sarama.AsyncProducer {
	return p.producer
}

// Failed counts events the broker rejected after retries.
func (p *Producer) Failed() uint64 {
	return p.failed.Load()
}

// Close flushes pending messages and shuts the producer down.
func (p *Producer) Close() error {
	p.logger.Info("closing kafka producer", zap.Uint64("undelivered", p.Failed()))
	close(p.done)
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// TopicName prefixes an event type unless it already carries the prefix.
func (p *Producer) TopicName(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}
	prefix := p.cfg.TopicPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}
	return prefix + eventType
}
