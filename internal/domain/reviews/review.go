package reviews

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/errs"
	"rentals/internal/domain/shared/events"
)

var (
	ErrNotFound        = errs.NotFound("reviews: not found")
	ErrListingNotFound = errs.NotFound("reviews: listing not found")
	ErrInvalidRating   = errs.Validation("reviews: rating must be between 1 and 5")
	ErrCommentTooLong  = errs.Validation("reviews: comment exceeds 1000 characters")
	ErrAuthorRequired  = errs.Validation("reviews: author id is required")
	ErrSelfReview      = errs.Forbidden("reviews: hosts cannot review their own listing")
	ErrNotAuthor       = errs.Forbidden("reviews: only the author or an admin can delete a review")
	ErrDuplicate       = errs.Conflict("reviews: author already reviewed this listing")
)

const (
	MinRating        = 1
	MaxRating        = 5
	maxCommentLength = 1000
)

type ReviewID string

type Review struct {
	ID        ReviewID
	AuthorID  string
	ListingID listings.ListingID
	Rating    int
	Comment   string
	CreatedAt time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ReviewID) (*Review, error)
	ByAuthorAndListing(ctx context.Context, authorID string, listingID listings.ListingID) (*Review, error)
	// ListByListing returns reviews newest first; limit 0 means no limit.
	ListByListing(ctx context.Context, listingID listings.ListingID, limit, offset int) ([]*Review, error)
	// Insert fails with ErrDuplicate when the author already reviewed the listing.
	Insert(ctx context.Context, review *Review) error
	Delete(ctx context.Context, id ReviewID) error
}

type SubmitParams struct {
	ID        ReviewID
	AuthorID  string
	ListingID listings.ListingID
	Rating    int
	Comment   string
	CreatedAt time.Time
}

func Submit(params SubmitParams) (*Review, error) {
	if strings.TrimSpace(params.AuthorID) == "" {
		return nil, ErrAuthorRequired
	}
	if params.Rating < MinRating || params.Rating > MaxRating {
		return nil, ErrInvalidRating
	}
	comment := strings.TrimSpace(params.Comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return nil, ErrCommentTooLong
	}
	review := &Review{
		ID:        params.ID,
		AuthorID:  params.AuthorID,
		ListingID: params.ListingID,
		Rating:    params.Rating,
		Comment:   comment,
		CreatedAt: params.CreatedAt.UTC(),
	}
	review.Record(ReviewSubmitted{ReviewID: review.ID, ListingID: review.ListingID, AuthorID: review.AuthorID, Rating: review.Rating, At: review.CreatedAt})
	return review, nil
}

// Remove checks the actor may delete the review and records the deletion.
func (r *Review) Remove(actorID string, isAdmin bool, now time.Time) error {
	if !isAdmin && r.AuthorID != actorID {
		return ErrNotAuthor
	}
	r.Record(ReviewDeleted{ReviewID: r.ID, ListingID: r.ListingID, ActorID: actorID, At: now.UTC()})
	return nil
}

// Clone returns a copy without pending events.
func (r *Review) Clone() *Review {
	if r == nil {
		return nil
	}
	cp := *r
	cp.EventRecorder = events.EventRecorder{}
	return &cp
}
