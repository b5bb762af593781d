// Package memcache shares idempotency records between API replicas through memcached.
package memcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"rentals/internal/app/middleware"
)

const keyPrefix = "idem:"

// Client is the subset of *memcache.Client the store uses.
type Client interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
}

// IdempotencyStore reads the local cache first, then memcached, and writes both.
type IdempotencyStore struct {
	Client Client
	Local  middleware.IdempotencyStore
	TTL    time.Duration
	Logger *slog.Logger
}

func NewIdempotencyStore(addrs []string, local middleware.IdempotencyStore, ttl time.Duration) *IdempotencyStore {
	client := memcache.New(addrs...)
	client.Timeout = 500 * time.Millisecond
	return &IdempotencyStore{Client: client, Local: local, TTL: ttl}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	if s.Local != nil {
		if rec, ok, err := s.Local.Get(ctx, key); err == nil && ok {
			return rec, true, nil
		}
	}
	item, err := s.Client.Get(keyFor(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, fmt.Errorf("memcache get: %w", err)
	}
	var rec middleware.IdempotencyRecord
	if err := json.Unmarshal(item.Value, &rec); err != nil {
		return middleware.IdempotencyRecord{}, false, fmt.Errorf("memcache decode %s: %w", key, err)
	}
	if s.Local != nil {
		if err := s.Local.Save(ctx, rec); err != nil && s.Logger != nil {
			s.Logger.Warn("local idempotency save failed", "key", key, "err", err)
		}
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.Client.Set(&memcache.Item{
		Key:        keyFor(rec.Key),
		Value:      data,
		Expiration: int32(s.ttl().Seconds()),
	}); err != nil {
		return fmt.Errorf("memcache set: %w", err)
	}
	if s.Local != nil {
		return s.Local.Save(ctx, rec)
	}
	return nil
}

func (s *IdempotencyStore) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return 24 * time.Hour
}

// keyFor hashes caller-supplied keys; memcached rejects spaces and keys over 250 bytes.
func keyFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return keyPrefix + hex.EncodeToString(sum[:])
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
