package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	handlersupport "rentals/internal/app/handlers/support"
	"rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainuser "rentals/internal/domain/user"
)

const updateBookingStatusKey = "booking.status.update"

type UpdateBookingStatusCommand struct {
	BookingID  string
	ActorID    string
	ActorRoles []domainuser.Role
	Status     string
}

func (c UpdateBookingStatusCommand) Key() string { return updateBookingStatusKey }

func (c UpdateBookingStatusCommand) Validate() error {
	if strings.TrimSpace(c.BookingID) == "" {
		return ErrBookingIDRequired
	}
	_, err := domainbooking.ParseStatus(c.Status)
	return err
}

// UpdateBookingStatusHandler lets the listing host (or an admin) move a booking
// along its lifecycle. Lost races surface as ErrConcurrentUpdate from the repository.
type UpdateBookingStatusHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *UpdateBookingStatusHandler) Handle(ctx context.Context, cmd UpdateBookingStatusCommand) (dto.Booking, error) {
	if err := cmd.Validate(); err != nil {
		return dto.Booking{}, err
	}
	next, _ := domainbooking.ParseStatus(cmd.Status)
	actor := handlersupport.Actor{ID: strings.TrimSpace(cmd.ActorID), Roles: cmd.ActorRoles}

	unit, execCtx, err := handlersupport.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Booking{}, err
	}
	defer unit.Release(execCtx)

	booking, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(strings.TrimSpace(cmd.BookingID)))
	if err != nil {
		return dto.Booking{}, err
	}
	listing, err := unit.Listings().ByID(execCtx, booking.ListingID)
	if err != nil {
		return dto.Booking{}, err
	}
	if !actor.IsAdmin() && (actor.Anonymous() || !listing.IsHostedBy(actor.ID)) {
		return dto.Booking{}, domainbooking.ErrNotHost
	}

	prev := booking.Status
	if err := booking.TransitionTo(next, actor.ID, handlersupport.Now(h.Now)); err != nil {
		return dto.Booking{}, err
	}
	if err := unit.Bookings().Save(execCtx, booking); err != nil {
		return dto.Booking{}, err
	}
	if err := outbox.RecordDomainEvents(execCtx, h.Outbox, h.Encoder, booking.Drain()); err != nil {
		return dto.Booking{}, err
	}
	if err := unit.Complete(execCtx); err != nil {
		return dto.Booking{}, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking status changed", "booking_id", booking.ID, "from", prev, "to", booking.Status, "actor_id", actor.ID)
	}
	return dto.MapBooking(booking), nil
}

var _ commands.Handler[UpdateBookingStatusCommand, dto.Booking] = (*UpdateBookingStatusHandler)(nil)
