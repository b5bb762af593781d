package availability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/domain/availability"
	"rentals/internal/domain/booking"
	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/daterange"
)

type stubSource struct {
	bookings []*booking.Booking
	statuses []booking.Status
	err      error
}

func (s *stubSource) ListByListing(_ context.Context, _ listings.ListingID, statuses ...booking.Status) ([]*booking.Booking, error) {
	s.statuses = statuses
	return s.bookings, s.err
}

func rng(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	require.NoError(t, err)
	return dr
}

func stay(t *testing.T, id string, in, out string, status booking.Status) *booking.Booking {
	return &booking.Booking{ID: booking.BookingID(id), ListingID: "lst-1", Range: rng(t, in, out), Status: status}
}

func TestConfirmedOverlapBlocks(t *testing.T) {
	src := &stubSource{bookings: []*booking.Booking{stay(t, "b1", "2025-04-01", "2025-04-07", booking.StatusConfirmed)}}
	checker := availability.Checker{Bookings: src}

	ok, err := checker.IsAvailable(context.Background(), "lst-1", rng(t, "2025-04-05", "2025-04-10"), "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, booking.ActiveStatuses, src.statuses)
}

func TestBackToBackStaysAreAvailable(t *testing.T) {
	src := &stubSource{bookings: []*booking.Booking{stay(t, "b1", "2025-04-01", "2025-04-07", booking.StatusPending)}}
	checker := availability.Checker{Bookings: src}

	ok, err := checker.IsAvailable(context.Background(), "lst-1", rng(t, "2025-04-07", "2025-04-10"), "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCancelledAndCompletedDoNotBlock(t *testing.T) {
	existing := []*booking.Booking{
		stay(t, "b1", "2025-04-01", "2025-04-07", booking.StatusCancelled),
		stay(t, "b2", "2025-04-01", "2025-04-07", booking.StatusCompleted),
	}
	assert.Empty(t, availability.Conflicts(existing, rng(t, "2025-04-02", "2025-04-05"), ""))
}

func TestExcludeIgnoresOneBooking(t *testing.T) {
	existing := []*booking.Booking{
		stay(t, "b1", "2025-04-01", "2025-04-07", booking.StatusConfirmed),
		stay(t, "b2", "2025-04-08", "2025-04-12", booking.StatusPending),
	}
	dr := rng(t, "2025-04-03", "2025-04-06")
	assert.Empty(t, availability.Conflicts(existing, dr, "b1"))

	conflicts := availability.Conflicts(existing, rng(t, "2025-04-05", "2025-04-09"), "")
	require.Len(t, conflicts, 2)
}

func TestSourceErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	checker := availability.Checker{Bookings: &stubSource{err: boom}}
	_, err := checker.IsAvailable(context.Background(), "lst-1", rng(t, "2025-04-01", "2025-04-02"), "")
	assert.ErrorIs(t, err, boom)
}
