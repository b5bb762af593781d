package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
)

// ReviewRepository relies on the unique (author_id, listing_id) index created by EnsureIndexes.
type ReviewRepository struct {
	col *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{col: db.Collection(colReviews)}
}

func (r *ReviewRepository) ByID(ctx context.Context, id domainreviews.ReviewID) (*domainreviews.Review, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *ReviewRepository) ByAuthorAndListing(ctx context.Context, authorID string, listingID listings.ListingID) (*domainreviews.Review, error) {
	return r.findOne(ctx, bson.M{"author_id": authorID, "listing_id": string(listingID)})
}

func (r *ReviewRepository) ListByListing(ctx context.Context, listingID listings.ListingID, limit, offset int) ([]*domainreviews.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, bson.M{"listing_id": string(listingID)}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo list reviews: %w", err)
	}
	var docs []reviewDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainreviews.Review, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

func (r *ReviewRepository) Insert(ctx context.Context, review *domainreviews.Review) error {
	if _, err := r.col.InsertOne(ctx, newReviewDocument(review)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainreviews.ErrDuplicate
		}
		return fmt.Errorf("mongo insert review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id domainreviews.ReviewID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return fmt.Errorf("mongo delete review: %w", err)
	}
	if res.DeletedCount == 0 {
		return domainreviews.ErrNotFound
	}
	return nil
}

func (r *ReviewRepository) findOne(ctx context.Context, filter bson.M) (*domainreviews.Review, error) {
	var doc reviewDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainreviews.ErrNotFound
		}
		return nil, fmt.Errorf("mongo find review: %w", err)
	}
	return doc.toAggregate(), nil
}

type reviewDocument struct {
	ID        string `bson:"_id"`
	AuthorID  string `bson:"author_id"`
	ListingID string `bson:"listing_id"`
	Rating    int    `bson:"rating"`
	Comment   string `bson:"comment"`
	CreatedAt int64  `bson:"created_at"`
}

func newReviewDocument(r *domainreviews.Review) reviewDocument {
	return reviewDocument{
		ID:        string(r.ID),
		AuthorID:  r.AuthorID,
		ListingID: string(r.ListingID),
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt.UnixMilli(),
	}
}

func (d reviewDocument) toAggregate() *domainreviews.Review {
	return &domainreviews.Review{
		ID:        domainreviews.ReviewID(d.ID),
		AuthorID:  d.AuthorID,
		ListingID: listings.ListingID(d.ListingID),
		Rating:    d.Rating,
		Comment:   d.Comment,
		CreatedAt: timestampToTime(d.CreatedAt),
	}
}

var _ domainreviews.Repository = (*ReviewRepository)(nil)
