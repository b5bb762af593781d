package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"rentals/internal/app/dto"
	handlersupport "rentals/internal/app/handlers/support"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	"rentals/internal/domain/availability"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/pricing"
	"rentals/internal/domain/shared/daterange"
)

const checkAvailabilityKey = "listing.availability.check"

type CheckAvailabilityQuery struct {
	ListingID string
	CheckIn   string
	CheckOut  string
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

func (q CheckAvailabilityQuery) Validate() error {
	if strings.TrimSpace(q.ListingID) == "" {
		return ErrListingIDRequired
	}
	_, err := daterange.Parse(q.CheckIn, q.CheckOut)
	return err
}

// CheckAvailabilityHandler quotes a stay without reserving it.
type CheckAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	if err := q.Validate(); err != nil {
		return dto.Availability{}, err
	}
	dr, _ := daterange.Parse(q.CheckIn, q.CheckOut)

	unit, execCtx, err := handlersupport.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	defer unit.Release(execCtx)

	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(strings.TrimSpace(q.ListingID)))
	if err != nil {
		if errors.Is(err, domainlistings.ErrNotFound) {
			return dto.Availability{}, domainbooking.ErrListingNotFound
		}
		return dto.Availability{}, err
	}
	if !listing.Active {
		return dto.Availability{}, domainbooking.ErrListingNotFound
	}

	quote, err := pricing.Compute(dr, listing.NightlyRate)
	if err != nil {
		return dto.Availability{}, err
	}
	free, err := availability.Checker{Bookings: unit.Bookings()}.IsAvailable(execCtx, listing.ID, dr, "")
	if err != nil {
		return dto.Availability{}, err
	}

	if h.Logger != nil {
		h.Logger.Debug("availability checked", "listing_id", listing.ID, "range", dr.String(), "available", free)
	}
	return dto.Availability{
		ListingID: string(listing.ID),
		CheckIn:   dr.CheckIn.Format(daterange.Layout),
		CheckOut:  dr.CheckOut.Format(daterange.Layout),
		Available: free,
		Nights:    quote.Nights,
		Total:     quote.Total.Decimal(),
		Currency:  quote.Total.Currency,
	}, nil
}

var _ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
