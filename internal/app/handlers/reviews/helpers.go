package reviews

import (
	"context"
	"errors"
	"time"

	"rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
	"rentals/internal/domain/shared/events"
)

func loadListing(ctx context.Context, unit uow.UnitOfWork, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	listing, err := unit.Listings().ByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainlistings.ErrNotFound) {
			return nil, domainreviews.ErrListingNotFound
		}
		return nil, err
	}
	return listing, nil
}

// recompute rebuilds the listing rating from the reviews visible in the unit and saves it.
func recompute(ctx context.Context, unit uow.UnitOfWork, listing *domainlistings.Listing, now time.Time) (domainlistings.RatingSummary, error) {
	items, err := unit.Reviews().ListByListing(ctx, listing.ID, 0, 0)
	if err != nil {
		return domainlistings.RatingSummary{}, err
	}
	summary := domainreviews.SummarizeReviews(items)
	listing.ApplyRating(summary, now)
	if err := unit.Listings().Save(ctx, listing); err != nil {
		return domainlistings.RatingSummary{}, err
	}
	return summary, nil
}

func publish(ctx context.Context, box outbox.Outbox, encoder outbox.EventEncoder, batches ...[]events.DomainEvent) error {
	var all []events.DomainEvent
	for _, batch := range batches {
		all = append(all, batch...)
	}
	return outbox.RecordDomainEvents(ctx, box, encoder, all)
}
