package reviews

import (
	"context"
	"log/slog"
	"strings"

	"rentals/internal/app/dto"
	handlersupport "rentals/internal/app/handlers/support"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/shared/errs"
)

const (
	listListingReviewsKey = "listing.reviews.list"
	defaultReviewsLimit   = 20
	maxReviewsLimit       = 100
)

var ErrInvalidPage = errs.Validation("reviews: offset must not be negative")

type ListListingReviewsQuery struct {
	ListingID string
	Limit     int
	Offset    int
}

func (q ListListingReviewsQuery) Key() string { return listListingReviewsKey }

func (q ListListingReviewsQuery) Validate() error {
	if strings.TrimSpace(q.ListingID) == "" {
		return ErrListingIDRequired
	}
	if q.Offset < 0 {
		return ErrInvalidPage
	}
	return nil
}

type ListListingReviewsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListListingReviewsHandler) Handle(ctx context.Context, q ListListingReviewsQuery) (dto.ReviewCollection, error) {
	if err := q.Validate(); err != nil {
		return dto.ReviewCollection{}, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultReviewsLimit
	}
	if limit > maxReviewsLimit {
		limit = maxReviewsLimit
	}

	unit, execCtx, err := handlersupport.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.ReviewCollection{}, err
	}
	defer unit.Release(execCtx)

	listing, err := loadListing(execCtx, unit, domainlistings.ListingID(strings.TrimSpace(q.ListingID)))
	if err != nil {
		return dto.ReviewCollection{}, err
	}
	items, err := unit.Reviews().ListByListing(execCtx, listing.ID, limit, q.Offset)
	if err != nil {
		return dto.ReviewCollection{}, err
	}

	out := dto.ReviewCollection{Items: make([]dto.Review, 0, len(items)), Limit: limit, Offset: q.Offset}
	for _, r := range items {
		out.Items = append(out.Items, dto.MapReview(r))
	}
	if h.Logger != nil {
		h.Logger.Debug("listing reviews listed", "listing_id", listing.ID, "count", len(out.Items), "limit", limit, "offset", q.Offset)
	}
	return out, nil
}

var _ queries.Handler[ListListingReviewsQuery, dto.ReviewCollection] = (*ListListingReviewsHandler)(nil)
