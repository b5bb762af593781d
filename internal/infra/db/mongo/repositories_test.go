package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
	"rentals/internal/domain/shared/errs"
	"rentals/internal/domain/shared/money"
)

func TestBookingRepositoryByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes document", func(mt *mtest.T) {
		checkIn := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "rentals.agg_booking", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "bk-1"},
			{Key: "listing_id", Value: "lst-1"},
			{Key: "guest_id", Value: "g1"},
			{Key: "range", Value: bson.D{
				{Key: "check_in", Value: checkIn.UnixMilli()},
				{Key: "check_out", Value: checkIn.AddDate(0, 0, 5).UnixMilli()},
			}},
			{Key: "guests", Value: 2},
			{Key: "nights", Value: 5},
			{Key: "total_minor", Value: int64(42500)},
			{Key: "currency", Value: "USD"},
			{Key: "status", Value: "confirmed"},
			{Key: "version", Value: int64(3)},
		}))

		got, err := NewBookingRepository(mt.DB).ByID(context.Background(), "bk-1")
		require.NoError(mt, err)
		assert.Equal(mt, domainbooking.StatusConfirmed, got.Status)
		assert.Equal(mt, money.Must(42500, "USD"), got.TotalPrice)
		assert.Equal(mt, 5, got.Range.Nights())
		assert.Equal(mt, int64(3), got.Version)
	})

	mt.Run("missing maps to not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "rentals.agg_booking", mtest.FirstBatch))

		_, err := NewBookingRepository(mt.DB).ByID(context.Background(), "nope")
		assert.ErrorIs(mt, err, domainbooking.ErrNotFound)
		assert.ErrorIs(mt, err, errs.ErrNotFound)
	})
}

func TestReviewInsertDuplicate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("unique index violation", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		err := NewReviewRepository(mt.DB).Insert(context.Background(), &domainreviews.Review{
			ID: "rv-1", AuthorID: "g1", ListingID: "lst-1", Rating: 4,
		})
		assert.ErrorIs(mt, err, domainreviews.ErrDuplicate)
	})
}

func TestListingSaveVersionMismatch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("stale version", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}, {Key: "nModified", Value: 0}})

		listing := &domainlistings.Listing{ID: "lst-1", Host: "host-1", NightlyRate: money.Must(8500, "USD"), Version: 2}
		err := NewListingRepository(mt.DB).Save(context.Background(), listing)
		assert.ErrorIs(mt, err, domainlistings.ErrConcurrentUpdate)
		assert.Equal(mt, int64(2), listing.Version)
	})

	mt.Run("matched bumps version", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}})

		listing := &domainlistings.Listing{ID: "lst-1", Host: "host-1", NightlyRate: money.Must(8500, "USD"), Version: 2}
		require.NoError(mt, NewListingRepository(mt.DB).Save(context.Background(), listing))
		assert.Equal(mt, int64(3), listing.Version)
	})
}
