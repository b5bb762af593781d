package reviews

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	handlersupport "rentals/internal/app/handlers/support"
	"rentals/internal/app/middleware"
	"rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
	"rentals/internal/domain/shared/errs"
)

const createReviewKey = "review.create"

var ErrListingIDRequired = errs.Validation("reviews: listing id is required")

type CreateReviewCommand struct {
	ListingID       string
	AuthorID        string
	Rating          int
	Comment         string
	IdempotencyKeyV string
}

func (c CreateReviewCommand) Key() string { return createReviewKey }

func (c CreateReviewCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateReviewCommand) IdempotencyScope() string { return strings.TrimSpace(c.AuthorID) }

func (c CreateReviewCommand) ResultPrototype() any { return &CreateReviewResult{} }

func (c CreateReviewCommand) SerializationScope() string {
	return middleware.ListingScope(strings.TrimSpace(c.ListingID))
}

func (c CreateReviewCommand) Validate() error {
	if strings.TrimSpace(c.ListingID) == "" {
		return ErrListingIDRequired
	}
	if strings.TrimSpace(c.AuthorID) == "" {
		return domainreviews.ErrAuthorRequired
	}
	if c.Rating < domainreviews.MinRating || c.Rating > domainreviews.MaxRating {
		return domainreviews.ErrInvalidRating
	}
	return nil
}

type CreateReviewResult struct {
	Review dto.Review        `json:"review"`
	Rating dto.RatingSummary `json:"rating"`
}

// CreateReviewHandler stores a review and refreshes the listing rating in the same unit.
type CreateReviewHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	NewID      func() string
	Logger     *slog.Logger
}

func (h *CreateReviewHandler) Handle(ctx context.Context, cmd CreateReviewCommand) (CreateReviewResult, error) {
	if err := cmd.Validate(); err != nil {
		return CreateReviewResult{}, err
	}
	authorID := strings.TrimSpace(cmd.AuthorID)
	now := handlersupport.Now(h.Now)

	unit, execCtx, err := handlersupport.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return CreateReviewResult{}, err
	}
	defer unit.Release(execCtx)

	listing, err := loadListing(execCtx, unit, domainlistings.ListingID(strings.TrimSpace(cmd.ListingID)))
	if err != nil {
		return CreateReviewResult{}, err
	}
	if listing.IsHostedBy(authorID) {
		return CreateReviewResult{}, domainreviews.ErrSelfReview
	}
	if _, err := unit.Reviews().ByAuthorAndListing(execCtx, authorID, listing.ID); err == nil {
		return CreateReviewResult{}, domainreviews.ErrDuplicate
	} else if !errors.Is(err, domainreviews.ErrNotFound) {
		return CreateReviewResult{}, err
	}

	review, err := domainreviews.Submit(domainreviews.SubmitParams{
		ID:        domainreviews.ReviewID(handlersupport.NewID(h.NewID)),
		AuthorID:  authorID,
		ListingID: listing.ID,
		Rating:    cmd.Rating,
		Comment:   cmd.Comment,
		CreatedAt: now,
	})
	if err != nil {
		return CreateReviewResult{}, err
	}
	if err := unit.Reviews().Insert(execCtx, review); err != nil {
		return CreateReviewResult{}, err
	}
	summary, err := recompute(execCtx, unit, listing, now)
	if err != nil {
		return CreateReviewResult{}, err
	}
	if err := publish(execCtx, h.Outbox, h.Encoder, review.Drain(), listing.Drain()); err != nil {
		return CreateReviewResult{}, err
	}
	if err := unit.Complete(execCtx); err != nil {
		return CreateReviewResult{}, err
	}

	if h.Logger != nil {
		h.Logger.Info("review submitted", "review_id", review.ID, "listing_id", listing.ID, "author_id", authorID, "rating", review.Rating)
		h.Logger.Info("rating recomputed", "listing_id", listing.ID, "average", summary.String(), "count", summary.Count)
	}
	return CreateReviewResult{Review: dto.MapReview(review), Rating: dto.MapRating(summary)}, nil
}

var _ commands.Handler[CreateReviewCommand, CreateReviewResult] = (*CreateReviewHandler)(nil)
