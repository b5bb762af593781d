package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "rentals/internal/app/outbox"
	"rentals/internal/infra/outbox"
	"rentals/internal/infra/storage/memory"
)

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	fail error
	out  []published
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.fail != nil {
		return p.fail
	}
	p.out = append(p.out, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, "booking.events.v1", outbox.TopicFor("", "booking.requested"))
	assert.Equal(t, "dev.review.events.v1", outbox.TopicFor("dev.", "review.deleted"))
	assert.Equal(t, "plain.events.v1", outbox.TopicFor("", "plain"))
}

func TestWorkerPublishesCloudEvents(t *testing.T) {
	ctx := context.Background()
	box := memory.NewStore().Outbox()
	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{
		ID:         "ev-1",
		Name:       "booking.requested",
		Payload:    []byte(`{"booking_id":"bk-1"}`),
		OccurredAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Aggregate:  "bk-1",
	}))

	producer := &fakeProducer{}
	w := &outbox.Worker{Store: box, Producer: producer, TopicPrefix: "test.", ID: "w1"}
	require.NoError(t, w.Drain(ctx))

	require.Len(t, producer.out, 1)
	msg := producer.out[0]
	assert.Equal(t, "test.booking.events.v1", msg.topic)
	assert.Equal(t, "bk-1", msg.key)
	assert.Equal(t, "application/cloudevents+json", msg.headers["content-type"])

	var evt map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &evt))
	assert.Equal(t, "1.0", evt["specversion"])
	assert.Equal(t, "ev-1", evt["id"])
	assert.Equal(t, "booking.requested.v1", evt["type"])
	assert.Equal(t, map[string]any{"booking_id": "bk-1"}, evt["data"])
	assert.Zero(t, box.Pending())
}

func TestWorkerBacksOffOnFailure(t *testing.T) {
	ctx := context.Background()
	box := memory.NewStore().Outbox()
	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{ID: "ev-1", Name: "review.submitted", Payload: []byte(`{}`)}))

	producer := &fakeProducer{fail: errors.New("broker down")}
	w := &outbox.Worker{Store: box, Producer: producer, Backoff: []time.Duration{time.Hour}}
	require.NoError(t, w.Drain(ctx))
	assert.Equal(t, 1, box.Pending())

	producer.fail = nil
	require.NoError(t, w.Drain(ctx))
	assert.Empty(t, producer.out, "message is parked until its retry time")

	w.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.NoError(t, w.Drain(ctx))
	assert.Len(t, producer.out, 1)
	assert.Zero(t, box.Pending())
}

func TestWorkerRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	box := memory.NewStore().Outbox()
	producer := &fakeProducer{}
	w := &outbox.Worker{Store: box, Producer: producer, Wake: box.Signal(), Interval: time.Hour}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, box.Add(context.Background(), appoutbox.EventRecord{ID: "ev-1", Name: "booking.requested", Payload: []byte(`{}`)}))
	require.NoError(t, box.Flush(context.Background()))
	require.Eventually(t, func() bool { return box.Pending() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.ErrorIs(t, (&outbox.Worker{}).Run(context.Background()), outbox.ErrWorkerNotConfigured)
}
