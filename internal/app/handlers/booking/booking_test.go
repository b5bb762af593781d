package booking_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/booking"
	"rentals/internal/app/middleware"
	"rentals/internal/app/queries"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/shared/errs"
	"rentals/internal/domain/shared/money"
	domainuser "rentals/internal/domain/user"
	"rentals/internal/infra/lock/inproc"
	"rentals/internal/infra/storage/memory"
)

var start = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	box     *memory.Outbox
	cmds    commands.Bus
	queries *queries.InMemoryBus
	create  *booking.CreateBookingHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	box := store.Outbox()

	var tick int64
	clock := func() time.Time {
		return start.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Minute)
	}

	seed := func(id string, active bool) {
		listing, err := domainlistings.NewListing(domainlistings.CreateParams{
			ID:          domainlistings.ListingID(id),
			Host:        "host-1",
			Title:       "Loft " + id,
			City:        "Lisbon",
			Country:     "PT",
			NightlyRate: money.MustParse("85", "USD"),
			MaxGuests:   3,
			Active:      active,
			Now:         start,
		})
		require.NoError(t, err)
		store.SeedListing(listing)
	}
	seed("lst-1", true)
	seed("lst-2", true)
	seed("lst-off", false)

	create := &booking.CreateBookingHandler{UoWFactory: store, Outbox: box, Now: clock}
	base := commands.NewInMemoryBus()
	commands.RegisterHandler[booking.CreateBookingCommand, dto.Booking](base, booking.CreateBookingCommand{}.Key(), create)
	commands.RegisterHandler[booking.UpdateBookingStatusCommand, dto.Booking](base, booking.UpdateBookingStatusCommand{}.Key(),
		&booking.UpdateBookingStatusHandler{UoWFactory: store, Outbox: box, Now: clock})

	qbus := queries.NewInMemoryBus()
	queries.RegisterHandler[booking.ListGuestBookingsQuery, dto.BookingCollection](qbus, booking.ListGuestBookingsQuery{}.Key(),
		&booking.ListGuestBookingsHandler{UoWFactory: store})
	queries.RegisterHandler[booking.ListHostBookingsQuery, dto.BookingCollection](qbus, booking.ListHostBookingsQuery{}.Key(),
		&booking.ListHostBookingsHandler{UoWFactory: store})
	queries.RegisterHandler[booking.CheckAvailabilityQuery, dto.Availability](qbus, booking.CheckAvailabilityQuery{}.Key(),
		&booking.CheckAvailabilityHandler{UoWFactory: store})

	idem := memory.NewIdempotencyStore(0, time.Hour)
	t.Cleanup(idem.Stop)

	bus := middleware.ChainCommands(base,
		middleware.Serialize(inproc.New(2*time.Second)),
		middleware.Idempotency(idem, nil),
		middleware.Validation(middleware.SelfValidator{}),
		middleware.OutboxFlush(box, nil),
		middleware.Transaction(store, nil),
	)
	return &fixture{store: store, box: box, cmds: bus, queries: qbus, create: create}
}

func (f *fixture) book(guest, listing, in, out string, guests int) (dto.Booking, error) {
	return f.bookWithKey("", guest, listing, in, out, guests)
}

func (f *fixture) bookWithKey(key, guest, listing, in, out string, guests int) (dto.Booking, error) {
	return commands.Dispatch[booking.CreateBookingCommand, dto.Booking](context.Background(), f.cmds, booking.CreateBookingCommand{
		ListingID:       listing,
		GuestID:         guest,
		CheckIn:         in,
		CheckOut:        out,
		Guests:          guests,
		IdempotencyKeyV: key,
	})
}

func (f *fixture) setStatus(actor string, roles []domainuser.Role, id, status string) (dto.Booking, error) {
	return commands.Dispatch[booking.UpdateBookingStatusCommand, dto.Booking](context.Background(), f.cmds, booking.UpdateBookingStatusCommand{
		BookingID:  id,
		ActorID:    actor,
		ActorRoles: roles,
		Status:     status,
	})
}

var hostRoles = []domainuser.Role{domainuser.RoleGuest, domainuser.RoleHost}

func TestCreateBookingPricesStay(t *testing.T) {
	f := newFixture(t)

	got, err := f.book("guest-1", "lst-1", "2025-03-15", "2025-03-20", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Nights)
	assert.Equal(t, "425.00", got.TotalPrice)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "pending", got.Status)
	assert.Equal(t, "2025-03-15", got.CheckIn)
	assert.Equal(t, "2025-03-20", got.CheckOut)
	assert.Contains(t, f.box.Names(), "booking.requested")
}

func TestOverlappingConfirmedBookingConflicts(t *testing.T) {
	f := newFixture(t)

	first, err := f.book("guest-1", "lst-1", "2025-04-01", "2025-04-07", 1)
	require.NoError(t, err)
	_, err = f.setStatus("host-1", hostRoles, first.ID, "confirmed")
	require.NoError(t, err)

	_, err = f.book("guest-2", "lst-1", "2025-04-05", "2025-04-10", 1)
	assert.ErrorIs(t, err, domainbooking.ErrUnavailable)
	assert.ErrorIs(t, err, errs.ErrConflict)

	_, err = f.book("guest-2", "lst-1", "2025-04-07", "2025-04-10", 1)
	assert.NoError(t, err, "back-to-back stays share the turnover day")

	_, err = f.book("guest-2", "lst-2", "2025-04-05", "2025-04-10", 1)
	assert.NoError(t, err, "other listings are unaffected")
}

func TestCancelledBookingReleasesDates(t *testing.T) {
	f := newFixture(t)

	first, err := f.book("guest-1", "lst-1", "2025-04-01", "2025-04-07", 1)
	require.NoError(t, err)
	_, err = f.book("guest-2", "lst-1", "2025-04-03", "2025-04-05", 1)
	require.ErrorIs(t, err, errs.ErrConflict)

	cancelled, err := f.setStatus("host-1", hostRoles, first.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)

	_, err = f.book("guest-2", "lst-1", "2025-04-03", "2025-04-05", 1)
	assert.NoError(t, err)
}

func TestCreateBookingRejections(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name    string
		guest   string
		listing string
		in, out string
		guests  int
		kind    error
	}{
		{"host books own listing", "host-1", "lst-1", "2025-04-01", "2025-04-03", 1, errs.ErrForbidden},
		{"unknown listing", "guest-1", "missing", "2025-04-01", "2025-04-03", 1, errs.ErrNotFound},
		{"inactive listing", "guest-1", "lst-off", "2025-04-01", "2025-04-03", 1, errs.ErrNotFound},
		{"too many guests", "guest-1", "lst-1", "2025-04-01", "2025-04-03", 4, errs.ErrValidation},
		{"no guests", "guest-1", "lst-1", "2025-04-01", "2025-04-03", 0, errs.ErrValidation},
		{"check-out before check-in", "guest-1", "lst-1", "2025-04-03", "2025-04-01", 1, errs.ErrValidation},
		{"zero nights", "guest-1", "lst-1", "2025-04-03", "2025-04-03", 1, errs.ErrValidation},
		{"bad date", "guest-1", "lst-1", "04/01/2025", "2025-04-03", 1, errs.ErrValidation},
		{"check-in in the past", "guest-1", "lst-1", "2025-02-20", "2025-02-23", 1, errs.ErrValidation},
		{"host books own listing with no guests", "host-1", "lst-1", "2025-04-01", "2025-04-03", 0, errs.ErrForbidden},
		{"host books own listing with inverted dates", "host-1", "lst-1", "2025-04-03", "2025-04-01", 1, errs.ErrForbidden},
		{"unknown listing with inverted dates", "guest-1", "missing", "2025-04-03", "2025-04-01", 1, errs.ErrNotFound},
		{"inactive listing with no guests", "guest-1", "lst-off", "2025-04-01", "2025-04-03", 0, errs.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.book(tc.guest, tc.listing, tc.in, tc.out, tc.guests)
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestIdempotencyKeyIsScopedToGuest(t *testing.T) {
	f := newFixture(t)

	first, err := f.bookWithKey("k1", "guest-a", "lst-1", "2025-04-01", "2025-04-03", 1)
	require.NoError(t, err)
	again, err := f.bookWithKey("k1", "guest-a", "lst-1", "2025-04-01", "2025-04-03", 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := f.bookWithKey("k1", "guest-b", "lst-2", "2025-04-05", "2025-04-08", 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, "guest-b", other.GuestID)
	assert.Equal(t, "lst-2", other.ListingID)

	_, err = f.bookWithKey("k1", "guest-a", "lst-2", "2025-04-10", "2025-04-12", 1)
	assert.ErrorIs(t, err, middleware.ErrIdempotencyKeyReused)
	assert.ErrorIs(t, err, errs.ErrConflict)

	mine, err := queries.Ask[booking.ListGuestBookingsQuery, dto.BookingCollection](context.Background(), f.queries, booking.ListGuestBookingsQuery{GuestID: "guest-b"})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 1)
}

func TestPastCheckInPolicy(t *testing.T) {
	f := newFixture(t)
	f.create.AllowPastCheckIn = true

	_, err := f.book("guest-1", "lst-1", "2025-02-20", "2025-02-23", 1)
	assert.NoError(t, err)
}

func TestConcurrentRequestsHaveOneWinner(t *testing.T) {
	f := newFixture(t)

	const n = 12
	var wg sync.WaitGroup
	var wins, conflicts int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.book("guest-x", "lst-1", "2025-05-01", "2025-05-04", 1)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, errs.ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(n-1), conflicts)
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)

	b, err := f.book("guest-1", "lst-1", "2025-04-01", "2025-04-03", 1)
	require.NoError(t, err)

	_, err = f.setStatus("guest-1", []domainuser.Role{domainuser.RoleGuest}, b.ID, "confirmed")
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.setStatus("host-1", hostRoles, b.ID, "completed")
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	_, err = f.setStatus("host-1", hostRoles, b.ID, "confirmed")
	require.NoError(t, err)
	done, err := f.setStatus("admin-1", []domainuser.Role{domainuser.RoleAdmin}, b.ID, "completed")
	require.NoError(t, err)
	assert.Equal(t, "completed", done.Status)

	_, err = f.setStatus("host-1", hostRoles, b.ID, "confirmed")
	assert.ErrorIs(t, err, domainbooking.ErrInvalidTransition)

	_, err = f.setStatus("host-1", hostRoles, b.ID, "archived")
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.setStatus("host-1", hostRoles, "missing", "confirmed")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	assert.Contains(t, f.box.Names(), "booking.status_changed")
}

func TestListBookingsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.book("guest-1", "lst-1", "2025-04-01", "2025-04-03", 1)
	require.NoError(t, err)
	b, err := f.book("guest-1", "lst-2", "2025-04-01", "2025-04-03", 1)
	require.NoError(t, err)
	c, err := f.book("guest-2", "lst-1", "2025-04-10", "2025-04-12", 1)
	require.NoError(t, err)

	mine, err := queries.Ask[booking.ListGuestBookingsQuery, dto.BookingCollection](ctx, f.queries, booking.ListGuestBookingsQuery{GuestID: "guest-1"})
	require.NoError(t, err)
	require.Len(t, mine.Items, 2)
	assert.Equal(t, []string{b.ID, a.ID}, []string{mine.Items[0].ID, mine.Items[1].ID})

	hosted, err := queries.Ask[booking.ListHostBookingsQuery, dto.BookingCollection](ctx, f.queries, booking.ListHostBookingsQuery{HostID: "host-1"})
	require.NoError(t, err)
	require.Len(t, hosted.Items, 3)
	assert.Equal(t, c.ID, hosted.Items[0].ID)
	assert.Equal(t, a.ID, hosted.Items[2].ID)

	none, err := queries.Ask[booking.ListHostBookingsQuery, dto.BookingCollection](ctx, f.queries, booking.ListHostBookingsQuery{HostID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, none.Items)
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.book("guest-1", "lst-1", "2025-04-01", "2025-04-07", 1)
	require.NoError(t, err)

	busy, err := queries.Ask[booking.CheckAvailabilityQuery, dto.Availability](ctx, f.queries, booking.CheckAvailabilityQuery{
		ListingID: "lst-1", CheckIn: "2025-04-05", CheckOut: "2025-04-10",
	})
	require.NoError(t, err)
	assert.False(t, busy.Available)
	assert.Equal(t, 5, busy.Nights)
	assert.Equal(t, "425.00", busy.Total)

	free, err := queries.Ask[booking.CheckAvailabilityQuery, dto.Availability](ctx, f.queries, booking.CheckAvailabilityQuery{
		ListingID: "lst-1", CheckIn: "2025-04-07", CheckOut: "2025-04-08",
	})
	require.NoError(t, err)
	assert.True(t, free.Available)
	assert.Equal(t, "85.00", free.Total)

	_, err = queries.Ask[booking.CheckAvailabilityQuery, dto.Availability](ctx, f.queries, booking.CheckAvailabilityQuery{
		ListingID: "lst-off", CheckIn: "2025-04-07", CheckOut: "2025-04-08",
	})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
