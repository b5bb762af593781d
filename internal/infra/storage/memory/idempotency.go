package memory

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v3"

	"rentals/internal/app/middleware"
)

// IdempotencyStore keeps command outcomes in a bounded TTL cache.
type IdempotencyStore struct {
	cache *ccache.Cache[middleware.IdempotencyRecord]
	ttl   time.Duration
}

func NewIdempotencyStore(maxSize int64, ttl time.Duration) *IdempotencyStore {
	if maxSize <= 0 {
		maxSize = 10000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{
		cache: ccache.New(ccache.Configure[middleware.IdempotencyRecord]().MaxSize(maxSize)),
		ttl:   ttl,
	}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	item := s.cache.Get(key)
	if item == nil || item.Expired() {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return item.Value(), true, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.cache.Set(rec.Key, rec, s.ttl)
	return nil
}

func (s *IdempotencyStore) Stop() {
	s.cache.Stop()
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
