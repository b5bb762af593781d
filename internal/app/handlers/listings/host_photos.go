package listings

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	handlersupport "rentals/internal/app/handlers/support"
	"rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	"rentals/internal/domain/shared/errs"
	domainuser "rentals/internal/domain/user"
)

const uploadListingPhotoKey = "host.listings.photos.upload"

var (
	ErrPhotoRequired       = errs.Validation("listings: photo body is required")
	ErrUploaderUnavailable = errs.Conflict("listings: photo storage is not configured")
)

// PhotoUploader stores an object and returns its public URL.
type PhotoUploader interface {
	Upload(ctx context.Context, objectKey string, body io.Reader, contentType string) (string, error)
}

type UploadListingPhotoCommand struct {
	ListingID   string
	ActorID     string
	Roles       []domainuser.Role
	FileName    string
	ContentType string
	Reader      io.Reader
}

func (c UploadListingPhotoCommand) Key() string { return uploadListingPhotoKey }

type UploadListingPhotoHandler struct {
	UoWFactory uow.UoWFactory
	Uploader   PhotoUploader
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	NewID      func() string
	Logger     *slog.Logger
}

func (h *UploadListingPhotoHandler) Handle(ctx context.Context, cmd UploadListingPhotoCommand) (dto.Listing, error) {
	if h.Uploader == nil {
		return dto.Listing{}, ErrUploaderUnavailable
	}
	if strings.TrimSpace(cmd.ListingID) == "" {
		return dto.Listing{}, ErrListingIDRequired
	}
	if cmd.Reader == nil {
		return dto.Listing{}, ErrPhotoRequired
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

	objectKey := fmt.Sprintf("listings/%s/%s%s", listing.ID, handlersupport.NewID(h.NewID), strings.ToLower(path.Ext(cmd.FileName)))
	publicURL, err := h.Uploader.Upload(execCtx, objectKey, cmd.Reader, cmd.ContentType)
	if err != nil {
		return dto.Listing{}, fmt.Errorf("upload photo: %w", err)
	}
	if err := listing.AddPhoto(publicURL, handlersupport.Now(h.Now)); err != nil {
		return dto.Listing{}, err
	}
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
		h.Logger.Info("listing photo added", "listing_id", listing.ID, "object_key", objectKey)
	}
	return dto.MapListing(listing), nil
}

var _ commands.Handler[UploadListingPhotoCommand, dto.Listing] = (*UploadListingPhotoHandler)(nil)
