package listings_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/listings"
	"rentals/internal/app/middleware"
	"rentals/internal/app/queries"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/shared/errs"
	domainuser "rentals/internal/domain/user"
	"rentals/internal/infra/storage/memory"
)

type fakeUploader struct {
	keys []string
	body string
	err  error
}

func (u *fakeUploader) Upload(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	data, _ := io.ReadAll(body)
	u.body = string(data)
	u.keys = append(u.keys, key)
	return "https://cdn.example.com/" + key, nil
}

type fixture struct {
	cmds     commands.Bus
	queries  *queries.InMemoryBus
	uploader *fakeUploader
	box      *memory.Outbox
}

func newFixture() *fixture {
	store := memory.NewStore()
	box := store.Outbox()
	uploader := &fakeUploader{}
	clock := func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	base := commands.NewInMemoryBus()
	commands.RegisterHandler[listings.CreateListingCommand, dto.Listing](base, listings.CreateListingCommand{}.Key(),
		&listings.CreateListingHandler{UoWFactory: store, Outbox: box, DefaultCurrency: "USD", Now: clock})
	commands.RegisterHandler[listings.SetListingActiveCommand, dto.Listing](base, listings.SetListingActiveCommand{}.Key(),
		&listings.SetListingActiveHandler{UoWFactory: store, Outbox: box, Now: clock})
	commands.RegisterHandler[listings.UploadListingPhotoCommand, dto.Listing](base, listings.UploadListingPhotoCommand{}.Key(),
		&listings.UploadListingPhotoHandler{UoWFactory: store, Uploader: uploader, Outbox: box, Now: clock, NewID: func() string { return "p1" }})

	qbus := queries.NewInMemoryBus()
	queries.RegisterHandler[listings.GetListingQuery, dto.Listing](qbus, listings.GetListingQuery{}.Key(),
		&listings.GetListingHandler{UoWFactory: store})
	queries.RegisterHandler[listings.ListHostListingsQuery, []dto.Listing](qbus, listings.ListHostListingsQuery{}.Key(),
		&listings.ListHostListingsHandler{UoWFactory: store})

	bus := middleware.ChainCommands(base,
		middleware.Authorization(middleware.RoleAuthorizer{}),
		middleware.OutboxFlush(box, nil),
		middleware.Transaction(store, nil),
	)
	return &fixture{cmds: bus, queries: qbus, uploader: uploader, box: box}
}

var host = []domainuser.Role{domainuser.RoleGuest, domainuser.RoleHost}

func (f *fixture) create(t *testing.T, roles []domainuser.Role, photos ...string) (dto.Listing, error) {
	t.Helper()
	return commands.Dispatch[listings.CreateListingCommand, dto.Listing](context.Background(), f.cmds, listings.CreateListingCommand{
		HostID:      "host-1",
		Roles:       roles,
		Title:       " Sea view ",
		City:        "Porto",
		Country:     "PT",
		NightlyRate: "99.995",
		MaxGuests:   2,
		Amenities:   []string{" WiFi", "wifi", "Pool", ""},
		Photos:      photos,
	})
}

func TestCreateListing(t *testing.T) {
	f := newFixture()

	got, err := f.create(t, host, "https://img.example.com/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "Sea view", got.Title)
	assert.Equal(t, "100.00", got.NightlyRate)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, []string{"wifi", "pool"}, got.Amenities)
	assert.False(t, got.Active)
	assert.Equal(t, dto.RatingSummary{}, got.Rating)

	_, err = f.create(t, []domainuser.Role{domainuser.RoleGuest})
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.create(t, host, "ftp://img.example.com/a.jpg")
	assert.ErrorIs(t, err, errs.ErrValidation)

	fetched, err := queries.Ask[listings.GetListingQuery, dto.Listing](context.Background(), f.queries, listings.GetListingQuery{ListingID: got.ID})
	require.NoError(t, err)
	assert.Equal(t, got.ID, fetched.ID)

	_, err = queries.Ask[listings.GetListingQuery, dto.Listing](context.Background(), f.queries, listings.GetListingQuery{ListingID: "missing"})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	mine, err := queries.Ask[listings.ListHostListingsQuery, []dto.Listing](context.Background(), f.queries, listings.ListHostListingsQuery{HostID: "host-1"})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestCreateListingRejectsOversizedRate(t *testing.T) {
	f := newFixture()
	_, err := commands.Dispatch[listings.CreateListingCommand, dto.Listing](context.Background(), f.cmds, listings.CreateListingCommand{
		HostID:      "host-1",
		Roles:       host,
		Title:       "Palace",
		City:        "Porto",
		Country:     "PT",
		NightlyRate: "999999999999999",
		MaxGuests:   2,
	})
	assert.ErrorIs(t, err, domainlistings.ErrNightlyRateLimit)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestSetListingActive(t *testing.T) {
	f := newFixture()
	created, err := f.create(t, host)
	require.NoError(t, err)

	activate := func(actor string, active bool) (dto.Listing, error) {
		return commands.Dispatch[listings.SetListingActiveCommand, dto.Listing](context.Background(), f.cmds, listings.SetListingActiveCommand{
			ListingID: created.ID, ActorID: actor, Roles: host, Active: active,
		})
	}

	_, err = activate("host-2", true)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	on, err := activate("host-1", true)
	require.NoError(t, err)
	assert.True(t, on.Active)
	assert.Contains(t, f.box.Names(), "listing.activated")

	off, err := activate("host-1", false)
	require.NoError(t, err)
	assert.False(t, off.Active)
}

func TestUploadListingPhoto(t *testing.T) {
	f := newFixture()
	created, err := f.create(t, host)
	require.NoError(t, err)

	got, err := commands.Dispatch[listings.UploadListingPhotoCommand, dto.Listing](context.Background(), f.cmds, listings.UploadListingPhotoCommand{
		ListingID:   created.ID,
		ActorID:     "host-1",
		FileName:    "Front.JPG",
		ContentType: "image/jpeg",
		Reader:      strings.NewReader("bytes"),
	})
	require.NoError(t, err)
	want := "https://cdn.example.com/listings/" + created.ID + "/p1.jpg"
	assert.Equal(t, []string{want}, got.Photos)
	assert.Equal(t, "bytes", f.uploader.body)

	f.uploader.err = errors.New("bucket offline")
	_, err = commands.Dispatch[listings.UploadListingPhotoCommand, dto.Listing](context.Background(), f.cmds, listings.UploadListingPhotoCommand{
		ListingID: created.ID, ActorID: "host-1", Reader: strings.NewReader("x"),
	})
	assert.ErrorContains(t, err, "bucket offline")

	_, err = commands.Dispatch[listings.UploadListingPhotoCommand, dto.Listing](context.Background(), f.cmds, listings.UploadListingPhotoCommand{
		ListingID: created.ID, ActorID: "host-1",
	})
	assert.ErrorIs(t, err, errs.ErrValidation)
}
