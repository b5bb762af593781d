package reviews

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
	domainreviews "rentals/internal/domain/reviews"
	"rentals/internal/domain/shared/errs"
	domainuser "rentals/internal/domain/user"
)

const deleteReviewKey = "review.delete"

var ErrReviewIDRequired = errs.Validation("reviews: review id is required")

type DeleteReviewCommand struct {
	ReviewID   string
	ActorID    string
	ActorRoles []domainuser.Role
}

func (c DeleteReviewCommand) Key() string { return deleteReviewKey }

func (c DeleteReviewCommand) Validate() error {
	if strings.TrimSpace(c.ReviewID) == "" {
		return ErrReviewIDRequired
	}
	return nil
}

type DeleteReviewResult struct {
	ReviewID string            `json:"review_id"`
	Rating   dto.RatingSummary `json:"rating"`
}

type DeleteReviewHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *DeleteReviewHandler) Handle(ctx context.Context, cmd DeleteReviewCommand) (DeleteReviewResult, error) {
	if err := cmd.Validate(); err != nil {
		return DeleteReviewResult{}, err
	}
	actor := handlersupport.Actor{ID: strings.TrimSpace(cmd.ActorID), Roles: cmd.ActorRoles}
	now := handlersupport.Now(h.Now)

	unit, execCtx, err := handlersupport.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return DeleteReviewResult{}, err
	}
	defer unit.Release(execCtx)

	review, err := unit.Reviews().ByID(execCtx, domainreviews.ReviewID(strings.TrimSpace(cmd.ReviewID)))
	if err != nil {
		return DeleteReviewResult{}, err
	}
	if err := review.Remove(actor.ID, actor.IsAdmin(), now); err != nil {
		return DeleteReviewResult{}, err
	}
	listing, err := loadListing(execCtx, unit, review.ListingID)
	if err != nil {
		return DeleteReviewResult{}, err
	}
	if err := unit.Reviews().Delete(execCtx, review.ID); err != nil {
		return DeleteReviewResult{}, err
	}
	summary, err := recompute(execCtx, unit, listing, now)
	if err != nil {
		return DeleteReviewResult{}, err
	}
	if err := publish(execCtx, h.Outbox, h.Encoder, review.Drain(), listing.Drain()); err != nil {
		return DeleteReviewResult{}, err
	}
	if err := unit.Complete(execCtx); err != nil {
		return DeleteReviewResult{}, err
	}

	if h.Logger != nil {
		h.Logger.Info("review deleted", "review_id", review.ID, "listing_id", listing.ID, "actor_id", actor.ID)
		h.Logger.Info("rating recomputed", "listing_id", listing.ID, "average", summary.String(), "count", summary.Count)
	}
	return DeleteReviewResult{ReviewID: string(review.ID), Rating: dto.MapRating(summary)}, nil
}

// ReviewScope resolves the listing lock for commands that only name a review.
// Unknown reviews resolve to no scope and fail inside the handler.
func ReviewScope(factory uow.UoWFactory) middleware.ScopeResolver {
	return func(ctx context.Context, cmd commands.Command) (string, bool, error) {
		del, ok := cmd.(DeleteReviewCommand)
		if !ok {
			return "", false, nil
		}
		unit, execCtx, err := handlersupport.BeginReadOnly(ctx, factory)
		if err != nil {
			return "", true, err
		}
		defer unit.Release(execCtx)

		review, err := unit.Reviews().ByID(execCtx, domainreviews.ReviewID(strings.TrimSpace(del.ReviewID)))
		if err != nil {
			if errors.Is(err, domainreviews.ErrNotFound) {
				return "", true, nil
			}
			return "", true, err
		}
		return middleware.ListingScope(string(review.ListingID)), true, nil
	}
}

var _ commands.Handler[DeleteReviewCommand, DeleteReviewResult] = (*DeleteReviewHandler)(nil)
