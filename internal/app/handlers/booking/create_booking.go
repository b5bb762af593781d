package booking

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
	"rentals/internal/domain/availability"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/pricing"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/errs"
)

const createBookingKey = "booking.create"

var (
	ErrListingIDRequired = errs.Validation("booking: listing id is required")
	ErrBookingIDRequired = errs.Validation("booking: booking id is required")
)

type CreateBookingCommand struct {
	ListingID       string
	GuestID         string
	CheckIn         string
	CheckOut        string
	Guests          int
	Note            string
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) IdempotencyScope() string { return strings.TrimSpace(c.GuestID) }

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

func (c CreateBookingCommand) SerializationScope() string {
	return middleware.ListingScope(strings.TrimSpace(c.ListingID))
}

// Validate checks request shape only. Guest count and range order depend on
// the listing and are checked after it is loaded.
func (c CreateBookingCommand) Validate() error {
	if strings.TrimSpace(c.ListingID) == "" {
		return ErrListingIDRequired
	}
	if strings.TrimSpace(c.GuestID) == "" {
		return domainbooking.ErrGuestRequired
	}
	if _, err := daterange.ParseDate(c.CheckIn); err != nil {
		return err
	}
	_, err := daterange.ParseDate(c.CheckOut)
	return err
}

type CreateBookingHandler struct {
	UoWFactory       uow.UoWFactory
	Outbox           outbox.Outbox
	Encoder          outbox.EventEncoder
	AllowPastCheckIn bool
	Now              func() time.Time
	NewID            func() string
	Logger           *slog.Logger
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (dto.Booking, error) {
	if err := cmd.Validate(); err != nil {
		return dto.Booking{}, err
	}
	guestID := strings.TrimSpace(cmd.GuestID)
	listingID := domainlistings.ListingID(strings.TrimSpace(cmd.ListingID))
	now := handlersupport.Now(h.Now)

	unit, execCtx, err := handlersupport.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Booking{}, err
	}
	defer unit.Release(execCtx)

	listing, err := unit.Listings().ByID(execCtx, listingID)
	if err != nil {
		if errors.Is(err, domainlistings.ErrNotFound) {
			return dto.Booking{}, domainbooking.ErrListingNotFound
		}
		return dto.Booking{}, err
	}
	if !listing.Active {
		return dto.Booking{}, domainbooking.ErrListingNotFound
	}
	if listing.IsHostedBy(guestID) {
		return dto.Booking{}, domainbooking.ErrSelfBooking
	}
	if cmd.Guests < 1 || cmd.Guests > listing.MaxGuests {
		return dto.Booking{}, domainbooking.ErrInvalidGuests
	}
	dr, err := daterange.Parse(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return dto.Booking{}, err
	}
	if !h.AllowPastCheckIn && dr.StartsBefore(now) {
		return dto.Booking{}, domainbooking.ErrCheckInInPast
	}

	checker := availability.Checker{Bookings: unit.Bookings()}
	free, err := checker.IsAvailable(execCtx, listing.ID, dr, "")
	if err != nil {
		return dto.Booking{}, err
	}
	if !free {
		return dto.Booking{}, domainbooking.ErrUnavailable
	}

	quote, err := pricing.Compute(dr, listing.NightlyRate)
	if err != nil {
		return dto.Booking{}, err
	}

	booking, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:         domainbooking.BookingID(handlersupport.NewID(h.NewID)),
		ListingID:  listing.ID,
		GuestID:    guestID,
		Range:      dr,
		Guests:     cmd.Guests,
		Nights:     quote.Nights,
		TotalPrice: quote.Total,
		Note:       cmd.Note,
		CreatedAt:  now,
	})
	if err != nil {
		return dto.Booking{}, err
	}
	if err := unit.Bookings().Insert(execCtx, booking); err != nil {
		return dto.Booking{}, err
	}
	if err := outbox.RecordDomainEvents(execCtx, h.Outbox, h.Encoder, booking.Drain()); err != nil {
		return dto.Booking{}, err
	}
	if err := unit.Complete(execCtx); err != nil {
		return dto.Booking{}, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking created",
			"booking_id", booking.ID,
			"listing_id", booking.ListingID,
			"guest_id", booking.GuestID,
			"range", booking.Range.String(),
			"total", booking.TotalPrice.String(),
		)
	}
	return dto.MapBooking(booking), nil
}

var _ commands.Handler[CreateBookingCommand, dto.Booking] = (*CreateBookingHandler)(nil)
