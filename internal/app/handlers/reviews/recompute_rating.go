package reviews

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	handlersupport "rentals/internal/app/handlers/support"
	"rentals/internal/app/middleware"
	"rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainlistings "rentals/internal/domain/listings"
	domainuser "rentals/internal/domain/user"
)

const recomputeRatingKey = "listing.rating.recompute"

// RecomputeRatingCommand is the admin maintenance entry point for the rating aggregator.
type RecomputeRatingCommand struct {
	ListingID string
	Roles     []domainuser.Role
}

func (c RecomputeRatingCommand) Key() string { return recomputeRatingKey }

func (c RecomputeRatingCommand) SerializationScope() string {
	return middleware.ListingScope(strings.TrimSpace(c.ListingID))
}

func (c RecomputeRatingCommand) RequiredRole() domainuser.Role { return domainuser.RoleAdmin }

func (c RecomputeRatingCommand) ActorRoles() []domainuser.Role { return c.Roles }

func (c RecomputeRatingCommand) Validate() error {
	if strings.TrimSpace(c.ListingID) == "" {
		return ErrListingIDRequired
	}
	return nil
}

type RecomputeRatingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *RecomputeRatingHandler) Handle(ctx context.Context, cmd RecomputeRatingCommand) (dto.RatingSummary, error) {
	if err := cmd.Validate(); err != nil {
		return dto.RatingSummary{}, err
	}
	if err := (middleware.RoleAuthorizer{}).Authorize(ctx, cmd); err != nil {
		return dto.RatingSummary{}, err
	}
	unit, execCtx, err := handlersupport.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.RatingSummary{}, err
	}
	defer unit.Release(execCtx)

	listing, err := loadListing(execCtx, unit, domainlistings.ListingID(strings.TrimSpace(cmd.ListingID)))
	if err != nil {
		return dto.RatingSummary{}, err
	}
	summary, err := recompute(execCtx, unit, listing, handlersupport.Now(h.Now))
	if err != nil {
		return dto.RatingSummary{}, err
	}
	if err := publish(execCtx, h.Outbox, h.Encoder, listing.Drain()); err != nil {
		return dto.RatingSummary{}, err
	}
	if err := unit.Complete(execCtx); err != nil {
		return dto.RatingSummary{}, err
	}

	if h.Logger != nil {
		h.Logger.Info("rating recomputed", "listing_id", listing.ID, "average", summary.String(), "count", summary.Count)
	}
	return dto.MapRating(summary), nil
}

var _ commands.Handler[RecomputeRatingCommand, dto.RatingSummary] = (*RecomputeRatingHandler)(nil)
