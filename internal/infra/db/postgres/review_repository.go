package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
)

const reviewColumns = `id, author_id, listing_id, rating, comment, created_at`

// ReviewRepository relies on the UNIQUE (author_id, listing_id) constraint for one review per author.
type ReviewRepository struct {
	q querier
}

func (r *ReviewRepository) ByID(ctx context.Context, id domainreviews.ReviewID) (*domainreviews.Review, error) {
	return r.one(ctx, `WHERE id = $1`, string(id))
}

func (r *ReviewRepository) ByAuthorAndListing(ctx context.Context, authorID string, listingID listings.ListingID) (*domainreviews.Review, error) {
	return r.one(ctx, `WHERE author_id = $1 AND listing_id = $2`, authorID, string(listingID))
}

func (r *ReviewRepository) ListByListing(ctx context.Context, listingID listings.ListingID, limit, offset int) ([]*domainreviews.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE listing_id = $1 ORDER BY created_at DESC, id DESC OFFSET $2`
	args := []any{string(listingID), offset}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres list reviews: %w", err)
	}
	defer rows.Close()

	out := make([]*domainreviews.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, review)
	}
	return out, rows.Err()
}

func (r *ReviewRepository) Insert(ctx context.Context, review *domainreviews.Review) error {
	_, err := r.q.ExecContext(ctx, `
	INSERT INTO reviews (`+reviewColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6)
	`, string(review.ID), review.AuthorID, string(review.ListingID), review.Rating, review.Comment, review.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domainreviews.ErrDuplicate
		}
		return fmt.Errorf("postgres insert review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id domainreviews.ReviewID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("postgres delete review: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return domainreviews.ErrNotFound
	}
	return nil
}

func (r *ReviewRepository) one(ctx context.Context, where string, args ...any) (*domainreviews.Review, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews `+where, args...)
	review, err := scanReview(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainreviews.ErrNotFound
		}
		return nil, fmt.Errorf("postgres review: %w", err)
	}
	return review, nil
}

func scanReview(s scanner) (*domainreviews.Review, error) {
	var (
		review        domainreviews.Review
		id, listingID string
	)
	if err := s.Scan(&id, &review.AuthorID, &listingID, &review.Rating, &review.Comment, &review.CreatedAt); err != nil {
		return nil, err
	}
	review.ID = domainreviews.ReviewID(id)
	review.ListingID = listings.ListingID(listingID)
	review.CreatedAt = review.CreatedAt.UTC()
	return &review, nil
}

var _ domainreviews.Repository = (*ReviewRepository)(nil)
