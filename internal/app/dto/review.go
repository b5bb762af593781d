package dto

import (
	"time"

	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
)

type Review struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	AuthorID  string    `json:"author_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ReviewCollection struct {
	Items  []Review `json:"items"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

func MapReview(review *domainreviews.Review) Review {
	if review == nil {
		return Review{}
	}
	return Review{
		ID:        string(review.ID),
		ListingID: string(review.ListingID),
		AuthorID:  review.AuthorID,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt,
	}
}

func MapRating(summary domainlistings.RatingSummary) RatingSummary {
	return RatingSummary{Average: summary.Average(), Count: summary.Count}
}
