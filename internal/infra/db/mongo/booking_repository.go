package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "rentals/internal/domain/booking"
	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/errs"
	"rentals/internal/domain/shared/money"
)

var ErrBookingExists = errs.Conflict("mongo: booking already exists")

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(colBookings)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrNotFound
		}
		return nil, fmt.Errorf("mongo booking %s: %w", id, err)
	}
	return doc.toAggregate()
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrBookingExists
		}
		return fmt.Errorf("mongo insert booking: %w", err)
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc})
	if err != nil {
		return fmt.Errorf("mongo update booking: %w", err)
	}
	if res.MatchedCount == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByListing(ctx context.Context, listingID listings.ListingID, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	filter := bson.M{"listing_id": string(listingID)}
	if len(statuses) > 0 {
		names := make([]string, 0, len(statuses))
		for _, s := range statuses {
			names = append(names, string(s))
		}
		filter["status"] = bson.M{"$in": names}
	}
	return r.find(ctx, filter)
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"guest_id": guestID})
}

func (r *BookingRepository) ListByListings(ctx context.Context, ids []listings.ListingID) ([]*domainbooking.Booking, error) {
	if len(ids) == 0 {
		return []*domainbooking.Booking{}, nil
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}
	return r.find(ctx, bson.M{"listing_id": bson.M{"$in": raw}})
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find bookings: %w", err)
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, doc := range docs {
		b, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

type bookingDocument struct {
	ID         string        `bson:"_id"`
	ListingID  string        `bson:"listing_id"`
	GuestID    string        `bson:"guest_id"`
	Range      rangeDocument `bson:"range"`
	Guests     int           `bson:"guests"`
	Nights     int           `bson:"nights"`
	TotalMinor int64         `bson:"total_minor"`
	Currency   string        `bson:"currency"`
	Status     string        `bson:"status"`
	Note       string        `bson:"note"`
	CreatedAt  int64         `bson:"created_at"`
	UpdatedAt  int64         `bson:"updated_at"`
	Version    int64         `bson:"version"`
}

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:         string(b.ID),
		ListingID:  string(b.ListingID),
		GuestID:    b.GuestID,
		Range:      rangeDocument{CheckIn: b.Range.CheckIn.UnixMilli(), CheckOut: b.Range.CheckOut.UnixMilli()},
		Guests:     b.Guests,
		Nights:     b.Nights,
		TotalMinor: b.TotalPrice.Amount,
		Currency:   b.TotalPrice.Currency,
		Status:     string(b.Status),
		Note:       b.Note,
		CreatedAt:  b.CreatedAt.UnixMilli(),
		UpdatedAt:  b.UpdatedAt.UnixMilli(),
		Version:    b.Version,
	}
}

func (d bookingDocument) toAggregate() (*domainbooking.Booking, error) {
	total, err := money.New(d.TotalMinor, d.Currency)
	if err != nil {
		return nil, fmt.Errorf("mongo booking %s: %w", d.ID, err)
	}
	return &domainbooking.Booking{
		ID:         domainbooking.BookingID(d.ID),
		ListingID:  listings.ListingID(d.ListingID),
		GuestID:    d.GuestID,
		Range:      daterange.DateRange{CheckIn: timestampToTime(d.Range.CheckIn), CheckOut: timestampToTime(d.Range.CheckOut)},
		Guests:     d.Guests,
		Nights:     d.Nights,
		TotalPrice: total,
		Status:     domainbooking.Status(d.Status),
		Note:       d.Note,
		CreatedAt:  timestampToTime(d.CreatedAt),
		UpdatedAt:  timestampToTime(d.UpdatedAt),
		Version:    d.Version,
	}, nil
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
