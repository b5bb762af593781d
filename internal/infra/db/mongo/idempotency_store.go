package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentals/internal/app/middleware"
)

type IdempotencyStore struct {
	col *mongo.Collection
}

// NewIdempotencyStore expires records ttl after they were saved through a TTL index.
func NewIdempotencyStore(ctx context.Context, db *mongo.Database, ttl time.Duration) (*IdempotencyStore, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	col := db.Collection(colIdempotency)
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
	}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &IdempotencyStore{col: col}, nil
}

// Get and Save run outside any unit of work; the middleware calls them around the transaction.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var doc idempotencyDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	return doc.toRecord(), true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	doc := idempotencyDocument{
		ID:          rec.Key,
		Fingerprint: rec.Fingerprint,
		Payload:     rec.Payload,
		Error:       rec.Error,
		ErrorKind:   rec.ErrorKind,
		OccurredAt:  rec.OccurredAt,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type idempotencyDocument struct {
	ID          string    `bson:"_id"`
	Fingerprint string    `bson:"fingerprint,omitempty"`
	Payload     []byte    `bson:"payload,omitempty"`
	Error       string    `bson:"error,omitempty"`
	ErrorKind   string    `bson:"error_kind,omitempty"`
	OccurredAt  time.Time `bson:"occurred_at"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (d idempotencyDocument) toRecord() middleware.IdempotencyRecord {
	return middleware.IdempotencyRecord{
		Key:         d.ID,
		Fingerprint: d.Fingerprint,
		Payload:     d.Payload,
		Error:       d.Error,
		ErrorKind:   d.ErrorKind,
		OccurredAt:  d.OccurredAt,
	}
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
