package listings

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
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/shared/errs"
	"rentals/internal/domain/shared/money"
	domainuser "rentals/internal/domain/user"
)

const (
	createListingKey    = "host.listings.create"
	setListingActiveKey = "host.listings.active"
)

var ErrListingIDRequired = errs.Validation("listings: listing id is required")

type CreateListingCommand struct {
	HostID      string
	Roles       []domainuser.Role
	Title       string
	Description string
	City        string
	Country     string
	NightlyRate string
	Currency    string
	MaxGuests   int
	Amenities   []string
	Photos      []string
	Active      bool
}

func (c CreateListingCommand) Key() string { return createListingKey }

func (c CreateListingCommand) RequiredRole() domainuser.Role { return domainuser.RoleHost }

func (c CreateListingCommand) ActorRoles() []domainuser.Role { return c.Roles }

type CreateListingHandler struct {
	UoWFactory      uow.UoWFactory
	Outbox          outbox.Outbox
	Encoder         outbox.EventEncoder
	DefaultCurrency string
	Now             func() time.Time
	NewID           func() string
	Logger          *slog.Logger
}

func (h *CreateListingHandler) Handle(ctx context.Context, cmd CreateListingCommand) (dto.Listing, error) {
	currency := strings.TrimSpace(cmd.Currency)
	if currency == "" {
		currency = h.DefaultCurrency
	}
	rate, err := money.ParseDecimal(cmd.NightlyRate, currency)
	if err != nil {
		return dto.Listing{}, domainlistings.ErrNightlyRate
	}
	now := handlersupport.Now(h.Now)
	listing, err := domainlistings.NewListing(domainlistings.CreateParams{
		ID:          domainlistings.ListingID(handlersupport.NewID(h.NewID)),
		Host:        domainlistings.HostID(strings.TrimSpace(cmd.HostID)),
		Title:       cmd.Title,
		Description: cmd.Description,
		City:        cmd.City,
		Country:     cmd.Country,
		NightlyRate: rate,
		MaxGuests:   cmd.MaxGuests,
		Amenities:   cmd.Amenities,
		Photos:      cmd.Photos,
		Active:      cmd.Active,
		Now:         now,
	})
	if err != nil {
		return dto.Listing{}, err
	}

	unit, execCtx, err := handlersupport.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Listing{}, err
	}
	defer unit.Release(execCtx)

	if err := unit.Listings().Save(execCtx, listing); err != nil {
		return dto.Listing{}, err
	}
	if err := outbox.RecordDomainEvents(execCtx, h.Outbox, h.Encoder, listing.Drain()); err != nil {
		return dto.Listing{}, err
	}
	if err := unit.Complete(execCtx); err != nil {
		return dto.Listing{}, err
	}

	if h.Logger != nil {
		h.Logger.Info("listing created", "listing_id", listing.ID, "host_id", listing.Host, "active", listing.Active)
	}
	return dto.MapListing(listing), nil
}

type SetListingActiveCommand struct {
	ListingID string
	ActorID   string
	Roles     []domainuser.Role
	Active    bool
}

func (c SetListingActiveCommand) Key() string { return setListingActiveKey }

type SetListingActiveHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *SetListingActiveHandler) Handle(ctx context.Context, cmd SetListingActiveCommand) (dto.Listing, error) {
	if strings.TrimSpace(cmd.ListingID) == "" {
		return dto.Listing{}, ErrListingIDRequired
	}
	unit, execCtx, err := handlersupport.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Listing{}, err
	}
	defer unit.Release(execCtx)

	listing, err := ownedListing(execCtx, unit, cmd.ListingID, handlersupport.Actor{ID: cmd.ActorID, Roles: cmd.Roles})
	if err != nil {
		return dto.Listing{}, err
	}
	now := handlersupport.Now(h.Now)
	if cmd.Active {
		listing.Activate(now)
	} else {
		listing.Deactivate(now)
	}
	evs := listing.Drain()
	if len(evs) > 0 {
		if err := unit.Listings().Save(execCtx, listing); err != nil {
			return dto.Listing{}, err
		}
		if err := outbox.RecordDomainEvents(execCtx, h.Outbox, h.Encoder, evs); err != nil {
			return dto.Listing{}, err
		}
	}
	if err := unit.Complete(execCtx); err != nil {
		return dto.Listing{}, err
	}

	if h.Logger != nil && len(evs) > 0 {
		h.Logger.Info("listing availability changed", "listing_id", listing.ID, "active", listing.Active)
	}
	return dto.MapListing(listing), nil
}

func ownedListing(ctx context.Context, unit uow.UnitOfWork, id string, actor handlersupport.Actor) (*domainlistings.Listing, error) {
	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(strings.TrimSpace(id)))
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !listing.IsHostedBy(strings.TrimSpace(actor.ID)) {
		return nil, domainlistings.ErrNotOwner
	}
	return listing, nil
}

var _ commands.Handler[CreateListingCommand, dto.Listing] = (*CreateListingHandler)(nil)
var _ commands.Handler[SetListingActiveCommand, dto.Listing] = (*SetListingActiveHandler)(nil)
