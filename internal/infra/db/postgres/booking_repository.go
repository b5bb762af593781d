package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	domainbooking "rentals/internal/domain/booking"
	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/errs"
	"rentals/internal/domain/shared/money"
)

var ErrBookingExists = errs.Conflict("postgres: booking already exists")

const bookingColumns = `id, listing_id, guest_id, check_in, check_out, guests, nights, total_minor, currency,
	status, note, created_at, updated_at, version`

type BookingRepository struct {
	q querier
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainbooking.ErrNotFound
		}
		return nil, fmt.Errorf("postgres booking %s: %w", id, err)
	}
	return b, nil
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	_, err := r.q.ExecContext(ctx, `
	INSERT INTO bookings (`+bookingColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)
	`, string(b.ID), string(b.ListingID), b.GuestID, b.Range.CheckIn, b.Range.CheckOut, b.Guests, b.Nights,
		b.TotalPrice.Amount, b.TotalPrice.Currency, string(b.Status), b.Note, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrBookingExists
		}
		if isExclusionViolation(err) {
			return domainbooking.ErrUnavailable
		}
		return fmt.Errorf("postgres insert booking: %w", err)
	}
	b.Version = 1
	return nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	res, err := r.q.ExecContext(ctx, `
	UPDATE bookings
	SET status = $1, note = $2, updated_at = $3, version = version + 1
	WHERE id = $4 AND version = $5
	`, string(b.Status), b.Note, b.UpdatedAt, string(b.ID), b.Version)
	if err != nil {
		return fmt.Errorf("postgres update booking: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version++
	return nil
}

func (r *BookingRepository) ListByListing(ctx context.Context, listingID listings.ListingID, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	if len(statuses) == 0 {
		return r.list(ctx, `WHERE listing_id = $1`, string(listingID))
	}
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	return r.list(ctx, `WHERE listing_id = $1 AND status = ANY($2)`, string(listingID), pq.Array(names))
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.list(ctx, `WHERE guest_id = $1`, guestID)
}

func (r *BookingRepository) ListByListings(ctx context.Context, ids []listings.ListingID) ([]*domainbooking.Booking, error) {
	if len(ids) == 0 {
		return []*domainbooking.Booking{}, nil
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}
	return r.list(ctx, `WHERE listing_id = ANY($1)`, pq.Array(raw))
}

func (r *BookingRepository) list(ctx context.Context, where string, args ...any) ([]*domainbooking.Booking, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres list bookings: %w", err)
	}
	defer rows.Close()

	out := make([]*domainbooking.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(s scanner) (*domainbooking.Booking, error) {
	var (
		b                     domainbooking.Booking
		id, listingID, status string
		checkIn, checkOut     sql.NullTime
		totalMinor            int64
		currency              string
	)
	if err := s.Scan(&id, &listingID, &b.GuestID, &checkIn, &checkOut, &b.Guests, &b.Nights, &totalMinor,
		&currency, &status, &b.Note, &b.CreatedAt, &b.UpdatedAt, &b.Version); err != nil {
		return nil, err
	}
	total, err := money.New(totalMinor, currency)
	if err != nil {
		return nil, fmt.Errorf("postgres booking %s: %w", id, err)
	}
	b.ID = domainbooking.BookingID(id)
	b.ListingID = listings.ListingID(listingID)
	b.Range = daterange.DateRange{CheckIn: daterange.Day(checkIn.Time), CheckOut: daterange.Day(checkOut.Time)}
	b.TotalPrice = total
	b.Status = domainbooking.Status(status)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
