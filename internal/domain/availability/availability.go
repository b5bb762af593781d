// Package availability decides whether a listing is free for a stay.
package availability

import (
	"context"

	"rentals/internal/domain/booking"
	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/daterange"
)

// BookingSource is the slice of the booking repository the checker reads.
type BookingSource interface {
	ListByListing(ctx context.Context, listingID listings.ListingID, statuses ...booking.Status) ([]*booking.Booking, error)
}

type Checker struct {
	Bookings BookingSource
}

// IsAvailable reports whether no pending or confirmed booking of the listing overlaps dr.
// A non-empty exclude ignores that booking.
func (c Checker) IsAvailable(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange, exclude booking.BookingID) (bool, error) {
	existing, err := c.Bookings.ListByListing(ctx, listingID, booking.ActiveStatuses...)
	if err != nil {
		return false, err
	}
	return len(Conflicts(existing, dr, exclude)) == 0, nil
}

// Conflicts returns the date-holding bookings that overlap dr.
func Conflicts(existing []*booking.Booking, dr daterange.DateRange, exclude booking.BookingID) []*booking.Booking {
	var out []*booking.Booking
	for _, b := range existing {
		if b == nil || !b.HoldsDates() {
			continue
		}
		if exclude != "" && b.ID == exclude {
			continue
		}
		if b.Range.Overlaps(dr) {
			out = append(out, b)
		}
	}
	return out
}
