// Package rabbitmq publishes outbox messages to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

const DefaultExchange = "rentals.events"

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  Channel
	exchange string
	logger   *slog.Logger
}

func Dial(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq declare exchange %s: %w", exchange, err)
	}
	p := NewPublisher(ch, exchange, logger)
	p.conn = conn
	p.logger.Info("rabbitmq publisher ready", "exchange", exchange)
	return p, nil
}

func NewPublisher(ch Channel, exchange string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{channel: ch, exchange: exchange, logger: logger}
}

// Publish routes the payload by topic; the key travels as the message id's correlation.
func (p *Publisher) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	table := amqp.Table{}
	contentType := "application/json"
	for k, v := range headers {
		if k == "content-type" {
			contentType = v
			continue
		}
		table[k] = v
	}
	msg := amqp.Publishing{
		ContentType:   contentType,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: key,
		MessageId:     headers["ce-id"],
		Timestamp:     time.Now().UTC(),
		Headers:       table,
		Body:          payload,
	}
	// amqp channels are not safe for concurrent publishes
	p.mu.Lock()
	err := p.channel.Publish(p.exchange, topic, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", topic, err)
	}
	p.logger.Debug("rabbitmq message published", "exchange", p.exchange, "routing_key", topic, "key", key)
	return nil
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
