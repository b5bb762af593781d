package booking

import (
	"context"
	"strings"
	"time"

	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/errs"
	"rentals/internal/domain/shared/events"
	"rentals/internal/domain/shared/money"
)

var (
	ErrNotFound          = errs.NotFound("booking: not found")
	ErrListingNotFound   = errs.NotFound("booking: listing not found or inactive")
	ErrSelfBooking       = errs.Forbidden("booking: hosts cannot book their own listing")
	ErrNotHost           = errs.Forbidden("booking: only the listing host or an admin can change the status")
	ErrInvalidGuests     = errs.Validation("booking: guest count outside listing capacity")
	ErrGuestRequired     = errs.Validation("booking: guest id is required")
	ErrCheckInInPast     = errs.Validation("booking: check-in date is in the past")
	ErrNoteTooLong       = errs.Validation("booking: note exceeds 1000 characters")
	ErrUnknownStatus     = errs.Validation("booking: unknown status")
	ErrUnavailable       = errs.Conflict("booking: listing is not available for the requested dates")
	ErrConcurrentUpdate  = errs.Conflict("booking: concurrent update detected")
	ErrInvalidTransition = errs.InvalidTransition("booking: status transition not allowed")
)

const maxNoteLength = 1000

type BookingID string

type Booking struct {
	ID         BookingID
	ListingID  listings.ListingID
	GuestID    string
	Range      daterange.DateRange
	Guests     int
	Nights     int
	TotalPrice money.Money
	Status     Status
	Note       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Version    int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Insert(ctx context.Context, booking *Booking) error
	Save(ctx context.Context, booking *Booking) error
	// ListByListing returns bookings of the listing, filtered by statuses when any are given.
	ListByListing(ctx context.Context, listingID listings.ListingID, statuses ...Status) ([]*Booking, error)
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
	ListByListings(ctx context.Context, listingIDs []listings.ListingID) ([]*Booking, error)
}

type CreateParams struct {
	ID         BookingID
	ListingID  listings.ListingID
	GuestID    string
	Range      daterange.DateRange
	Guests     int
	Nights     int
	TotalPrice money.Money
	Note       string
	CreatedAt  time.Time
}

// NewBooking builds a pending booking. Availability and pricing are the caller's job.
func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(params.GuestID) == "" {
		return nil, ErrGuestRequired
	}
	if params.Guests < 1 {
		return nil, ErrInvalidGuests
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	note := strings.TrimSpace(params.Note)
	if len([]rune(note)) > maxNoteLength {
		return nil, ErrNoteTooLong
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:         params.ID,
		ListingID:  params.ListingID,
		GuestID:    params.GuestID,
		Range:      params.Range,
		Guests:     params.Guests,
		Nights:     params.Nights,
		TotalPrice: params.TotalPrice,
		Status:     StatusPending,
		Note:       note,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.Record(BookingRequested{
		BookingID: b.ID,
		ListingID: b.ListingID,
		GuestID:   b.GuestID,
		CheckIn:   b.Range.CheckIn.Format(daterange.Layout),
		CheckOut:  b.Range.CheckOut.Format(daterange.Layout),
		Guests:    b.Guests,
		Total:     b.TotalPrice.Decimal(),
		Currency:  b.TotalPrice.Currency,
		At:        now,
	})
	return b, nil
}

// TransitionTo moves the booking along the lifecycle graph.
func (b *Booking) TransitionTo(next Status, actorID string, now time.Time) error {
	if !b.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	prev := b.Status
	b.Status = next
	b.UpdatedAt = now.UTC()
	b.Record(BookingStatusChanged{
		BookingID: b.ID,
		ListingID: b.ListingID,
		From:      prev,
		To:        next,
		ActorID:   actorID,
		At:        b.UpdatedAt,
	})
	return nil
}

func (b *Booking) HoldsDates() bool {
	return b.Status.HoldsDates()
}

// Clone returns a copy without pending events.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	cp := *b
	cp.EventRecorder = events.EventRecorder{}
	return &cp
}
