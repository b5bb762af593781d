package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
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

// OutboxStore inserts through the unit's transaction when one is bound to ctx.
type OutboxStore struct {
	db     *sql.DB
	signal infraoutbox.Signal
}

func NewOutboxStore(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db, signal: infraoutbox.NewSignal()}
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	var q querier = s.db
	if tx, ok := txFromContext(ctx); ok {
		q = tx
	}
	_, err = q.ExecContext(ctx, `
	INSERT INTO outbox (id, name, payload, occurred_at, aggregate, headers, state, next_attempt_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, record.ID, record.Name, record.Payload, record.OccurredAt, record.Aggregate, headers, stateNew, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres outbox add: %w", err)
	}
	return nil
}

func (s *OutboxStore) Flush(context.Context) error {
	s.signal.Notify()
	return nil
}

func (s *OutboxStore) Signal() infraoutbox.Signal {
	return s.signal
}

// Claim picks the oldest due record; SKIP LOCKED lets several workers poll the same table.
func (s *OutboxStore) Claim(ctx context.Context, workerID string, now time.Time) (*infraoutbox.Message, error) {
	var (
		msg     infraoutbox.Message
		headers []byte
	)
	err := s.db.QueryRowContext(ctx, `
	UPDATE outbox
	SET state = $1, claimed_by = $2, claimed_at = $3
	WHERE id = (
		SELECT id FROM outbox
		WHERE state IN ($4, $5) AND next_attempt_at <= $3
		ORDER BY next_attempt_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING id, name, payload, occurred_at, aggregate, headers, attempts
	`, stateClaimed, workerID, now, stateNew, stateFailed).
		Scan(&msg.ID, &msg.Name, &msg.Payload, &msg.OccurredAt, &msg.Aggregate, &headers, &msg.Attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres outbox claim: %w", err)
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &msg.Headers); err != nil {
			return nil, fmt.Errorf("postgres outbox headers %s: %w", msg.ID, err)
		}
	}
	return &msg, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE outbox SET state = $1, sent_at = $2 WHERE id = $3`, stateSent, at, id)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE outbox
	SET state = $1, next_attempt_at = $2, last_error = $3, attempts = attempts + 1
	WHERE id = $4
	`, stateFailed, next, errMsg, id)
	return err
}

var (
	_ appoutbox.Outbox  = (*OutboxStore)(nil)
	_ infraoutbox.Store = (*OutboxStore)(nil)
)
