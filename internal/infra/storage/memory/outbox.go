package memory

import (
	"context"
	"time"

	appoutbox "rentals/internal/app/outbox"
	infraoutbox "rentals/internal/infra/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

// Outbox stages records in the unit bound to the context and serves them to the worker after commit.
type Outbox struct {
	store *Store
}

func (s *Store) Outbox() *Outbox {
	return &Outbox{store: s}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if unit, ok := unitFromContext(ctx); ok {
		if err := unit.writable(); err != nil {
			return err
		}
		unit.records = append(unit.records, record)
		return nil
	}
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	o.store.outbox = append(o.store.outbox, &outboxEntry{
		msg: infraoutbox.Message{
			ID:         record.ID,
			Name:       record.Name,
			Payload:    append([]byte(nil), record.Payload...),
			OccurredAt: record.OccurredAt,
			Aggregate:  record.Aggregate,
			Headers:    record.Headers,
		},
		state:  stateNew,
		nextAt: time.Now().UTC(),
	})
	return nil
}

func (o *Outbox) Flush(context.Context) error {
	o.store.signal.Notify()
	return nil
}

// Signal is the channel Flush notifies.
func (o *Outbox) Signal() infraoutbox.Signal {
	return o.store.signal
}

func (o *Outbox) Claim(_ context.Context, workerID string, now time.Time) (*infraoutbox.Message, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	for _, entry := range o.store.outbox {
		if entry.state != stateNew && entry.state != stateFailed {
			continue
		}
		if entry.nextAt.After(now) {
			continue
		}
		entry.state = stateClaimed
		entry.claimedBy = workerID
		msg := entry.msg
		return &msg, nil
	}
	return nil, nil
}

func (o *Outbox) MarkSent(_ context.Context, id string, _ time.Time) error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	if entry := o.find(id); entry != nil {
		entry.state = stateSent
	}
	return nil
}

func (o *Outbox) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	if entry := o.find(id); entry != nil {
		entry.state = stateFailed
		entry.nextAt = next
		entry.lastError = errMsg
		entry.msg.Attempts++
	}
	return nil
}

// Pending counts records not yet delivered.
func (o *Outbox) Pending() int {
	o.store.mu.RLock()
	defer o.store.mu.RUnlock()
	n := 0
	for _, entry := range o.store.outbox {
		if entry.state != stateSent {
			n++
		}
	}
	return n
}

// Names lists event names in insertion order.
func (o *Outbox) Names() []string {
	o.store.mu.RLock()
	defer o.store.mu.RUnlock()
	out := make([]string, 0, len(o.store.outbox))
	for _, entry := range o.store.outbox {
		out = append(out, entry.msg.Name)
	}
	return out
}

func (o *Outbox) find(id string) *outboxEntry {
	for _, entry := range o.store.outbox {
		if entry.msg.ID == id {
			return entry
		}
	}
	return nil
}

var (
	_ appoutbox.Outbox  = (*Outbox)(nil)
	_ infraoutbox.Store = (*Outbox)(nil)
)
