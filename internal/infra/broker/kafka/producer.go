// Package kafka publishes outbox messages to Kafka topics.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/IBM/sarama"
)

var ErrNoBrokers = errors.New("kafka: at least one broker is required")

type Producer struct {
	sync   sarama.SyncProducer
	logger *slog.Logger
}

// NewConfig returns the producer settings used by the outbox: acks from all
// replicas and idempotent writes so redelivered messages are not duplicated.
func NewConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 5
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

func NewProducer(brokers []string, cfg *sarama.Config, logger *slog.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg == nil {
		cfg = NewConfig("rentals")
	}
	sync, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewProducerFrom(sync, logger), nil
}

// NewProducerFrom wraps an existing producer, such as sarama's mocks.
func NewProducerFrom(sync sarama.SyncProducer, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{sync: sync, logger: logger}
}

func (p *Producer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)
	hs := make([]sarama.RecordHeader, 0, len(names))
	for _, k := range names {
		hs = append(hs, sarama.RecordHeader{Key: []byte(k), Value: []byte(headers[k])})
	}
	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(payload),
		Headers: hs,
	}
	partition, offset, err := p.sync.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	p.logger.Debug("kafka message published", "topic", topic, "key", key, "partition", partition, "offset", offset)
	return nil
}

func (p *Producer) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}
