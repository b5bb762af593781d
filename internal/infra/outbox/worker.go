package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

// Message is an outbox record claimed for delivery.
type Message struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
	Attempts   int
}

// Store is the delivery side of an outbox. Claim returns nil when nothing is due.
type Store interface {
	Claim(ctx context.Context, workerID string, now time.Time) (*Message, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Signal wakes the worker early after a commit. Sends never block.
type Signal chan struct{}

func NewSignal() Signal {
	return make(Signal, 1)
}

func (s Signal) Notify() {
	if s == nil {
		return
	}
	select {
	case s <- struct{}{}:
	default:
	}
}

type Worker struct {
	Store       Store
	Producer    Producer
	Wake        Signal
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	BatchSize   int
	Now         func() time.Time
	Logger      *slog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.Wake:
		}
		if err := w.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if w.Logger != nil {
				w.Logger.Error("outbox drain failed", "worker_id", w.ID, "err", err)
			}
		}
	}
}

// Drain delivers due messages until none are left or the batch is exhausted.
func (w *Worker) Drain(ctx context.Context) error {
	for i := 0; i < w.batchSize(); i++ {
		sent, err := w.processOnce(ctx)
		if err != nil || !sent {
			return err
		}
	}
	return nil
}

func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	msg, err := w.Store.Claim(ctx, w.workerID(), w.now())
	if err != nil || msg == nil {
		return false, err
	}
	topic := w.topicFor(msg.Name)
	payload, headers, err := w.formatPayload(msg)
	if err == nil {
		err = w.Producer.Publish(ctx, topic, msg.Aggregate, payload, headers)
	}
	if err != nil {
		if w.Logger != nil {
			w.Logger.Warn("outbox publish failed", "event_id", msg.ID, "event", msg.Name, "topic", topic, "attempts", msg.Attempts+1, "err", err)
		}
		return true, w.Store.MarkFailed(ctx, msg.ID, w.nextRetry(msg.Attempts), err.Error())
	}
	if w.Logger != nil {
		w.Logger.Debug("outbox event published", "event_id", msg.ID, "event", msg.Name, "topic", topic)
	}
	return true, w.Store.MarkSent(ctx, msg.ID, w.now())
}

func (w *Worker) formatPayload(msg *Message) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(msg.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              msg.ID,
		"type":            msg.Name + ".v1",
		"source":          w.source(),
		"subject":         msg.Aggregate,
		"time":            msg.OccurredAt.UTC(),
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := msg.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-id":        msg.ID,
		"ce-type":      msg.Name + ".v1",
	}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// TopicFor maps "booking.requested" to "<prefix>booking.events.v1".
func TopicFor(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}

func (w *Worker) topicFor(name string) string {
	return TopicFor(w.TopicPrefix, name)
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	return "outbox-worker"
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 100
	}
	return w.BatchSize
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

func (w *Worker) nextRetry(attempts int) time.Time {
	now := w.now()
	if attempts < len(w.Backoff) {
		return now.Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return now.Add(w.Backoff[len(w.Backoff)-1])
	}
	return now.Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://rentals"
}
