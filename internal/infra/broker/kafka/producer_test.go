package kafka_test

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/infra/broker/kafka"
)

func TestPublishSendsKeyAndHeaders(t *testing.T) {
	mock := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "booking.events.v1" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "bk-1" {
			return errors.New("unexpected key " + string(key))
		}
		if len(msg.Headers) != 2 || string(msg.Headers[0].Key) != "ce-type" || string(msg.Headers[1].Key) != "content-type" {
			return errors.New("headers must be sorted")
		}
		return nil
	})

	p := kafka.NewProducerFrom(mock, nil)
	err := p.Publish(context.Background(), "booking.events.v1", "bk-1", []byte(`{}`), map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-type":      "booking.requested.v1",
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublishFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := kafka.NewProducerFrom(mock, nil)
	err := p.Publish(context.Background(), "review.events.v1", "rv-1", []byte(`{}`), nil)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestPublishHonorsCancelledContext(t *testing.T) {
	mock := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := kafka.NewProducerFrom(mock, nil)
	assert.ErrorIs(t, p.Publish(ctx, "t", "k", nil, nil), context.Canceled)
	require.NoError(t, p.Close())
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := kafka.NewProducer(nil, nil, nil)
	assert.ErrorIs(t, err, kafka.ErrNoBrokers)
}

func TestNewConfigIsValid(t *testing.T) {
	assert.NoError(t, kafka.NewConfig("rentals-test").Validate())
}
