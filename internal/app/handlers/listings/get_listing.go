package listings

import (
	"context"
	"log/slog"
	"strings"

	"rentals/internal/app/dto"
	handlersupport "rentals/internal/app/handlers/support"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	domainlistings "rentals/internal/domain/listings"
)

const (
	getListingKey       = "listings.get"
	listHostListingsKey = "host.listings.list"
)

type GetListingQuery struct {
	ListingID string
}

func (q GetListingQuery) Key() string { return getListingKey }

type GetListingHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *GetListingHandler) Handle(ctx context.Context, q GetListingQuery) (dto.Listing, error) {
	id := strings.TrimSpace(q.ListingID)
	if id == "" {
		return dto.Listing{}, ErrListingIDRequired
	}
	unit, execCtx, err := handlersupport.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.Listing{}, err
	}
	defer unit.Release(execCtx)

	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(id))
	if err != nil {
		return dto.Listing{}, err
	}
	return dto.MapListing(listing), nil
}

type ListHostListingsQuery struct {
	HostID string
}

func (q ListHostListingsQuery) Key() string { return listHostListingsKey }

type ListHostListingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListHostListingsHandler) Handle(ctx context.Context, q ListHostListingsQuery) ([]dto.Listing, error) {
	unit, execCtx, err := handlersupport.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer unit.Release(execCtx)

	items, err := unit.Listings().ListByHost(execCtx, domainlistings.HostID(strings.TrimSpace(q.HostID)))
	if err != nil {
		return nil, err
	}
	out := make([]dto.Listing, 0, len(items))
	for _, l := range items {
		out = append(out, dto.MapListing(l))
	}
	if h.Logger != nil {
		h.Logger.Debug("host listings listed", "host_id", q.HostID, "count", len(out))
	}
	return out, nil
}

var _ queries.Handler[GetListingQuery, dto.Listing] = (*GetListingHandler)(nil)
var _ queries.Handler[ListHostListingsQuery, []dto.Listing] = (*ListHostListingsHandler)(nil)
