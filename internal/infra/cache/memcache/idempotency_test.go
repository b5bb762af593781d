package memcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/middleware"
	"rentals/internal/infra/storage/memory"
)

type fakeClient struct {
	items map[string]*memcache.Item
	err   error
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: map[string]*memcache.Item{}}
}

func (c *fakeClient) Get(key string) (*memcache.Item, error) {
	if c.err != nil {
		return nil, c.err
	}
	item, ok := c.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	return item, nil
}

func (c *fakeClient) Set(item *memcache.Item) error {
	if c.err != nil {
		return c.err
	}
	c.items[item.Key] = item
	return nil
}

func TestSaveThenGet(t *testing.T) {
	client := newFakeClient()
	store := &IdempotencyStore{Client: client, TTL: time.Hour}
	ctx := context.Background()

	_, found, err := store.Get(ctx, "booking.create:abc")
	require.NoError(t, err)
	assert.False(t, found)

	rec := middleware.IdempotencyRecord{Key: "booking.create:abc", Payload: []byte(`{"id":"bk-1"}`), OccurredAt: time.Now().UTC()}
	require.NoError(t, store.Save(ctx, rec))

	got, found, err := store.Get(ctx, "booking.create:abc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec.Payload, got.Payload)

	for key, item := range client.items {
		assert.True(t, strings.HasPrefix(key, "idem:"))
		assert.Len(t, key, len("idem:")+64)
		assert.Equal(t, int32(3600), item.Expiration)
	}
}

func TestLocalTierServesReplicaWrites(t *testing.T) {
	client := newFakeClient()
	ctx := context.Background()
	writer := &IdempotencyStore{Client: client}
	require.NoError(t, writer.Save(ctx, middleware.IdempotencyRecord{Key: "review.create:k", ErrorKind: "conflict", Error: "reviews: author already reviewed this listing"}))

	local := memory.NewIdempotencyStore(10, time.Hour)
	t.Cleanup(local.Stop)
	reader := &IdempotencyStore{Client: client, Local: local}
	got, found, err := reader.Get(ctx, "review.create:k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "conflict", got.ErrorKind)

	client.err = errors.New("memcached down")
	cached, found, err := reader.Get(ctx, "review.create:k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, got.Error, cached.Error)
}

func TestKeysAreSafeForMemcached(t *testing.T) {
	key := keyFor("booking.create:" + strings.Repeat("x y", 200))
	assert.NotContains(t, key, " ")
	assert.LessOrEqual(t, len(key), 250)
	assert.Equal(t, key, keyFor("booking.create:"+strings.Repeat("x y", 200)))
}
