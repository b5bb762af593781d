package booking

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"rentals/internal/app/dto"
	handlersupport "rentals/internal/app/handlers/support"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/shared/errs"
)

const (
	listGuestBookingsKey = "guest.bookings.list"
	listHostBookingsKey  = "host.bookings.list"
)

var ErrActorRequired = errs.Validation("booking: actor id is required")

type ListGuestBookingsQuery struct {
	GuestID string
}

func (q ListGuestBookingsQuery) Key() string { return listGuestBookingsKey }

type ListGuestBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListGuestBookingsHandler) Handle(ctx context.Context, q ListGuestBookingsQuery) (dto.BookingCollection, error) {
	guestID := strings.TrimSpace(q.GuestID)
	if guestID == "" {
		return dto.BookingCollection{}, ErrActorRequired
	}
	unit, execCtx, err := handlersupport.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	defer unit.Release(execCtx)

	items, err := unit.Bookings().ListByGuest(execCtx, guestID)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	sortNewestFirst(items)

	if h.Logger != nil {
		h.Logger.Debug("guest bookings listed", "guest_id", guestID, "count", len(items))
	}
	return dto.MapBookings(items), nil
}

type ListHostBookingsQuery struct {
	HostID string
}

func (q ListHostBookingsQuery) Key() string { return listHostBookingsKey }

type ListHostBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListHostBookingsHandler) Handle(ctx context.Context, q ListHostBookingsQuery) (dto.BookingCollection, error) {
	hostID := strings.TrimSpace(q.HostID)
	if hostID == "" {
		return dto.BookingCollection{}, ErrActorRequired
	}
	unit, execCtx, err := handlersupport.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	defer unit.Release(execCtx)

	owned, err := unit.Listings().ListByHost(execCtx, domainlistings.HostID(hostID))
	if err != nil {
		return dto.BookingCollection{}, err
	}
	ids := make([]domainlistings.ListingID, 0, len(owned))
	for _, l := range owned {
		ids = append(ids, l.ID)
	}
	var items []*domainbooking.Booking
	if len(ids) > 0 {
		items, err = unit.Bookings().ListByListings(execCtx, ids)
		if err != nil {
			return dto.BookingCollection{}, err
		}
	}
	sortNewestFirst(items)

	if h.Logger != nil {
		h.Logger.Debug("host bookings listed", "host_id", hostID, "listings", len(ids), "count", len(items))
	}
	return dto.MapBookings(items), nil
}

func sortNewestFirst(items []*domainbooking.Booking) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

var _ queries.Handler[ListGuestBookingsQuery, dto.BookingCollection] = (*ListGuestBookingsHandler)(nil)
var _ queries.Handler[ListHostBookingsQuery, dto.BookingCollection] = (*ListHostBookingsHandler)(nil)
