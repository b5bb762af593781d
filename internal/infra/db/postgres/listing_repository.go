package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/shared/money"
)

const listingColumns = `id, host_id, title, description, city, country, rate_minor, currency, max_guests,
	active, amenities, photos, rating_tenths, review_count, created_at, updated_at, version`

type ListingRepository struct {
	q querier
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{q: db}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, string(id))
	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainlistings.ErrNotFound
		}
		return nil, fmt.Errorf("postgres listing %s: %w", id, err)
	}
	return l, nil
}

// Save inserts listings at version 0 and otherwise updates only the version it was loaded at.
func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	next := l.Version + 1
	var (
		res sql.Result
		err error
	)
	if l.Version == 0 {
		res, err = r.q.ExecContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING
		`, string(l.ID), string(l.Host), l.Title, l.Description, l.City, l.Country, l.NightlyRate.Amount,
			l.NightlyRate.Currency, l.MaxGuests, l.Active, pq.Array(l.Amenities), pq.Array(l.Photos),
			l.Rating.AverageTenths, l.Rating.Count, l.CreatedAt, l.UpdatedAt, next)
	} else {
		res, err = r.q.ExecContext(ctx, `
		UPDATE listings
		SET title = $1, description = $2, city = $3, country = $4, rate_minor = $5, currency = $6,
			max_guests = $7, active = $8, amenities = $9, photos = $10, rating_tenths = $11,
			review_count = $12, updated_at = $13, version = $14
		WHERE id = $15 AND version = $16
		`, l.Title, l.Description, l.City, l.Country, l.NightlyRate.Amount, l.NightlyRate.Currency,
			l.MaxGuests, l.Active, pq.Array(l.Amenities), pq.Array(l.Photos), l.Rating.AverageTenths,
			l.Rating.Count, l.UpdatedAt, next, string(l.ID), l.Version)
	}
	if err != nil {
		return fmt.Errorf("postgres save listing: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return domainlistings.ErrConcurrentUpdate
	}
	l.Version = next
	return nil
}

func (r *ListingRepository) ListByHost(ctx context.Context, host domainlistings.HostID) ([]*domainlistings.Listing, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE host_id = $1 ORDER BY created_at DESC, id`, string(host))
	if err != nil {
		return nil, fmt.Errorf("postgres listings by host: %w", err)
	}
	defer rows.Close()

	out := make([]*domainlistings.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(s scanner) (*domainlistings.Listing, error) {
	var (
		l         domainlistings.Listing
		id, host  string
		rateMinor int64
		currency  string
		amenities pq.StringArray
		photos    pq.StringArray
	)
	if err := s.Scan(&id, &host, &l.Title, &l.Description, &l.City, &l.Country, &rateMinor, &currency,
		&l.MaxGuests, &l.Active, &amenities, &photos, &l.Rating.AverageTenths, &l.Rating.Count,
		&l.CreatedAt, &l.UpdatedAt, &l.Version); err != nil {
		return nil, err
	}
	rate, err := money.New(rateMinor, currency)
	if err != nil {
		return nil, fmt.Errorf("postgres listing %s: %w", id, err)
	}
	l.ID = domainlistings.ListingID(id)
	l.Host = domainlistings.HostID(host)
	l.NightlyRate = rate
	l.Amenities = []string(amenities)
	l.Photos = []string(photos)
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}

var _ domainlistings.Repository = (*ListingRepository)(nil)
