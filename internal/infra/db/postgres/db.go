// Package postgres stores aggregates in PostgreSQL through database/sql and lib/pq.
// Every unit of work owns one *sql.Tx; repositories bound to it never see another.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

const (
	uniqueViolation    = "23505"
	exclusionViolation = "23P01"
)

type ConnectOptions struct {
	Retries int
	Delay   time.Duration
	Logger  *slog.Logger
}

// Open connects and pings, retrying while the database is still starting.
func Open(ctx context.Context, dsn string, opts ConnectOptions) (*sql.DB, error) {
	if opts.Retries <= 0 {
		opts.Retries = 10
	}
	if opts.Delay <= 0 {
		opts.Delay = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var lastErr error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		db, err := sql.Open("postgres", dsn)
		if err == nil {
			err = db.PingContext(ctx)
			if err == nil {
				logger.Info("postgres connected", "attempt", attempt)
				return db, nil
			}
			_ = db.Close()
		}
		lastErr = err
		logger.Warn("postgres not ready", "attempt", attempt, "max", opts.Retries, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.Delay):
		}
	}
	return nil, fmt.Errorf("postgres connect: %w", lastErr)
}

const schema = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS listings (
	id           TEXT PRIMARY KEY,
	host_id      TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL,
	country      TEXT NOT NULL,
	rate_minor   BIGINT NOT NULL CHECK (rate_minor > 0 AND rate_minor <= 9999999999),
	currency     CHAR(3) NOT NULL,
	max_guests   INT NOT NULL CHECK (max_guests >= 1),
	active       BOOLEAN NOT NULL DEFAULT FALSE,
	amenities    TEXT[] NOT NULL DEFAULT '{}',
	photos       TEXT[] NOT NULL DEFAULT '{}',
	rating_tenths INT NOT NULL DEFAULT 0,
	review_count INT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	version      BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS listings_host_idx ON listings (host_id, created_at DESC);

CREATE TABLE IF NOT EXISTS bookings (
	id          TEXT PRIMARY KEY,
	listing_id  TEXT NOT NULL REFERENCES listings (id),
	guest_id    TEXT NOT NULL,
	check_in    DATE NOT NULL,
	check_out   DATE NOT NULL CHECK (check_out > check_in),
	guests      INT NOT NULL,
	nights      INT NOT NULL,
	total_minor BIGINT NOT NULL,
	currency    CHAR(3) NOT NULL,
	status      TEXT NOT NULL,
	note        TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	version     BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS bookings_listing_idx ON bookings (listing_id, status);
DO $$
BEGIN
	ALTER TABLE bookings ADD CONSTRAINT bookings_active_no_overlap EXCLUDE USING gist (
		listing_id WITH =,
		daterange(check_in, check_out, '[)') WITH &&
	) WHERE (status IN ('pending', 'confirmed'));
EXCEPTION WHEN duplicate_object OR duplicate_table THEN NULL;
END
$$;
CREATE INDEX IF NOT EXISTS bookings_guest_idx ON bookings (guest_id, created_at DESC);

CREATE TABLE IF NOT EXISTS reviews (
	id         TEXT PRIMARY KEY,
	author_id  TEXT NOT NULL,
	listing_id TEXT NOT NULL REFERENCES listings (id),
	rating     INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
	comment    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (author_id, listing_id)
);
CREATE INDEX IF NOT EXISTS reviews_listing_idx ON reviews (listing_id, created_at DESC);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	roles         TEXT[] NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	payload         BYTEA NOT NULL,
	occurred_at     TIMESTAMPTZ NOT NULL,
	aggregate       TEXT NOT NULL DEFAULT '',
	headers         JSONB NOT NULL DEFAULT '{}',
	state           TEXT NOT NULL,
	attempts        INT NOT NULL DEFAULT 0,
	next_attempt_at TIMESTAMPTZ NOT NULL,
	claimed_by      TEXT,
	claimed_at      TIMESTAMPTZ,
	sent_at         TIMESTAMPTZ,
	last_error      TEXT
);
CREATE INDEX IF NOT EXISTS outbox_due_idx ON outbox (state, next_attempt_at);
`

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// isExclusionViolation reports a write rejected by the overlapping-stay constraint.
func isExclusionViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == exclusionViolation
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
