package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colListings    = "agg_listing"
	colBookings    = "agg_booking"
	colReviews     = "agg_review"
	colUsers       = "users"
	colOutbox      = "app_outbox"
	colIdempotency = "app_idempotency"
)

type Client struct {
	DB *mongo.Database
}

func New(uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := m.Ping(ctx, nil); err != nil {
		_ = m.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on for lookups and uniqueness.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	models := map[string][]mongo.IndexModel{
		colListings: {
			{Keys: bson.D{{Key: "host_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colBookings: {
			{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colReviews: {
			{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "listing_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colOutbox: {
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
		},
	}
	for name, idx := range models {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("mongo indexes %s: %w", name, err)
		}
	}
	return nil
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
