package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/shared/money"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection(colListings)}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrNotFound
		}
		return nil, fmt.Errorf("mongo listing %s: %w", id, err)
	}
	return doc.toAggregate()
}

// Save inserts listings at version 0 and otherwise updates only the version it was loaded at.
func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	doc := newListingDocument(l)
	doc.Version = l.Version + 1
	if l.Version == 0 {
		if _, err := r.col.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domainlistings.ErrConcurrentUpdate
			}
			return fmt.Errorf("mongo insert listing: %w", err)
		}
		l.Version = doc.Version
		return nil
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID, "version": l.Version}, bson.M{"$set": doc})
	if err != nil {
		return fmt.Errorf("mongo update listing: %w", err)
	}
	if res.MatchedCount == 0 {
		return domainlistings.ErrConcurrentUpdate
	}
	l.Version = doc.Version
	return nil
}

func (r *ListingRepository) ListByHost(ctx context.Context, host domainlistings.HostID) ([]*domainlistings.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"host_id": string(host)}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo listings by host: %w", err)
	}
	var docs []listingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainlistings.Listing, 0, len(docs))
	for _, doc := range docs {
		l, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

type listingDocument struct {
	ID           string   `bson:"_id"`
	HostID       string   `bson:"host_id"`
	Title        string   `bson:"title"`
	Description  string   `bson:"description"`
	City         string   `bson:"city"`
	Country      string   `bson:"country"`
	RateMinor    int64    `bson:"rate_minor"`
	Currency     string   `bson:"currency"`
	MaxGuests    int      `bson:"max_guests"`
	Active       bool     `bson:"active"`
	Amenities    []string `bson:"amenities"`
	Photos       []string `bson:"photos"`
	RatingTenths int      `bson:"rating_tenths"`
	ReviewCount  int      `bson:"review_count"`
	CreatedAt    int64    `bson:"created_at"`
	UpdatedAt    int64    `bson:"updated_at"`
	Version      int64    `bson:"version"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
		ID:           string(l.ID),
		HostID:       string(l.Host),
		Title:        l.Title,
		Description:  l.Description,
		City:         l.City,
		Country:      l.Country,
		RateMinor:    l.NightlyRate.Amount,
		Currency:     l.NightlyRate.Currency,
		MaxGuests:    l.MaxGuests,
		Active:       l.Active,
		Amenities:    l.Amenities,
		Photos:       l.Photos,
		RatingTenths: l.Rating.AverageTenths,
		ReviewCount:  l.Rating.Count,
		CreatedAt:    l.CreatedAt.UnixMilli(),
		UpdatedAt:    l.UpdatedAt.UnixMilli(),
		Version:      l.Version,
	}
}

func (d listingDocument) toAggregate() (*domainlistings.Listing, error) {
	rate, err := money.New(d.RateMinor, d.Currency)
	if err != nil {
		return nil, fmt.Errorf("mongo listing %s: %w", d.ID, err)
	}
	return &domainlistings.Listing{
		ID:          domainlistings.ListingID(d.ID),
		Host:        domainlistings.HostID(d.HostID),
		Title:       d.Title,
		Description: d.Description,
		City:        d.City,
		Country:     d.Country,
		NightlyRate: rate,
		MaxGuests:   d.MaxGuests,
		Active:      d.Active,
		Amenities:   d.Amenities,
		Photos:      d.Photos,
		Rating:      domainlistings.RatingSummary{AverageTenths: d.RatingTenths, Count: d.ReviewCount},
		CreatedAt:   timestampToTime(d.CreatedAt),
		UpdatedAt:   timestampToTime(d.UpdatedAt),
		Version:     d.Version,
	}, nil
}

var _ domainlistings.Repository = (*ListingRepository)(nil)
