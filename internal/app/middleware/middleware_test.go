package middleware_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/commands"
	"rentals/internal/app/middleware"
	"rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
	"rentals/internal/domain/shared/errs"
	domainuser "rentals/internal/domain/user"
)

type result struct {
	ID string `json:"id"`
}

type createThing struct {
	Idem    string
	Owner   string
	Listing string
	Roles   []domainuser.Role
}

func (createThing) Key() string { return "thing.create" }
func (c createThing) IdempotencyKey() string { return c.Idem }
func (c createThing) IdempotencyScope() string { return c.Owner }
func (createThing) ResultPrototype() any { return &result{} }
func (c createThing) SerializationScope() string { return middleware.ListingScope(c.Listing) }
func (createThing) RequiredRole() domainuser.Role { return domainuser.RoleHost }
func (c createThing) ActorRoles() []domainuser.Role { return c.Roles }

type mapStore struct {
	mu    sync.Mutex
	items map[string]middleware.IdempotencyRecord
}

func newMapStore() *mapStore {
	return &mapStore{items: map[string]middleware.IdempotencyRecord{}}
}

func (s *mapStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *mapStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	return nil
}

func busWith(fn func(ctx context.Context, cmd createThing) (result, error)) *commands.InMemoryBus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[createThing, result](bus, createThing{}.Key(), commands.HandlerFunc[createThing, result](fn))
	return bus
}

func TestIdempotencyReplaysResult(t *testing.T) {
	calls := 0
	bus := middleware.ChainCommands(busWith(func(context.Context, createThing) (result, error) {
		calls++
		return result{ID: "first"}, nil
	}), middleware.Idempotency(newMapStore(), nil))

	ctx := context.Background()
	first, err := commands.Dispatch[createThing, result](ctx, bus, createThing{Idem: "k1"})
	require.NoError(t, err)
	second, err := commands.Dispatch[createThing, result](ctx, bus, createThing{Idem: "k1"})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	_, err = commands.Dispatch[createThing, result](ctx, bus, createThing{})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyKeysAreScopedByActor(t *testing.T) {
	calls := 0
	store := newMapStore()
	bus := middleware.ChainCommands(busWith(func(_ context.Context, cmd createThing) (result, error) {
		calls++
		return result{ID: cmd.Owner + "/" + cmd.Listing}, nil
	}), middleware.Idempotency(store, nil))

	ctx := context.Background()
	a, err := commands.Dispatch[createThing, result](ctx, bus, createThing{Idem: "k1", Owner: "guest-a", Listing: "lst-1"})
	require.NoError(t, err)
	b, err := commands.Dispatch[createThing, result](ctx, bus, createThing{Idem: "k1", Owner: "guest-b", Listing: "lst-2"})
	require.NoError(t, err)

	assert.Equal(t, "guest-a/lst-1", a.ID)
	assert.Equal(t, "guest-b/lst-2", b.ID)
	assert.Equal(t, 2, calls)
	assert.Len(t, store.items, 2)
}

func TestIdempotencyRejectsReusedKeyWithDifferentBody(t *testing.T) {
	calls := 0
	bus := middleware.ChainCommands(busWith(func(context.Context, createThing) (result, error) {
		calls++
		return result{ID: "first"}, nil
	}), middleware.Idempotency(newMapStore(), nil))

	ctx := context.Background()
	_, err := commands.Dispatch[createThing, result](ctx, bus, createThing{Idem: "k4", Owner: "guest-a", Listing: "lst-1"})
	require.NoError(t, err)

	_, err = commands.Dispatch[createThing, result](ctx, bus, createThing{Idem: "k4", Owner: "guest-a", Listing: "lst-2"})
	assert.ErrorIs(t, err, middleware.ErrIdempotencyKeyReused)
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyReplaysDomainErrorKind(t *testing.T) {
	calls := 0
	bus := middleware.ChainCommands(busWith(func(context.Context, createThing) (result, error) {
		calls++
		return result{}, domainbooking.ErrUnavailable
	}), middleware.Idempotency(newMapStore(), nil))

	ctx := context.Background()
	_, err := commands.Dispatch[createThing, result](ctx, bus, createThing{Idem: "k2"})
	assert.ErrorIs(t, err, domainbooking.ErrUnavailable)

	_, err = commands.Dispatch[createThing, result](ctx, bus, createThing{Idem: "k2"})
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.EqualError(t, err, domainbooking.ErrUnavailable.Error())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyDoesNotRecordInfraErrors(t *testing.T) {
	calls := 0
	bus := middleware.ChainCommands(busWith(func(context.Context, createThing) (result, error) {
		calls++
		if calls == 1 {
			return result{}, errors.New("connection reset")
		}
		return result{ID: "ok"}, nil
	}), middleware.Idempotency(newMapStore(), nil))

	ctx := context.Background()
	_, err := commands.Dispatch[createThing, result](ctx, bus, createThing{Idem: "k3"})
	require.Error(t, err)
	res, err := commands.Dispatch[createThing, result](ctx, bus, createThing{Idem: "k3"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.ID)
}

type recordingLocker struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (l *recordingLocker) Lock(_ context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.add("lock " + key)
	return func() { l.add("unlock " + key) }, nil
}

func (l *recordingLocker) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

type fakeUnit struct {
	log *recordingLocker
}

func (fakeUnit) Listings() domainlistings.Repository { return nil }
func (fakeUnit) Bookings() domainbooking.Repository { return nil }
func (fakeUnit) Reviews() domainreviews.Repository { return nil }
func (u fakeUnit) Commit(context.Context) error {
	u.log.add("commit")
	return nil
}
func (u fakeUnit) Rollback(context.Context) error {
	u.log.add("rollback")
	return nil
}

type fakeFactory struct {
	log *recordingLocker
}

func (f fakeFactory) Begin(context.Context, uow.TxOptions) (uow.UnitOfWork, error) {
	f.log.add("begin")
	return fakeUnit{log: f.log}, nil
}

func TestSerializeWrapsWholeTransaction(t *testing.T) {
	log := &recordingLocker{}
	handlerErr := domainbooking.ErrUnavailable
	fail := false
	bus := middleware.ChainCommands(busWith(func(ctx context.Context, _ createThing) (result, error) {
		_, ok := uow.FromContext(ctx)
		assert.True(t, ok)
		log.add("handle")
		if fail {
			return result{}, handlerErr
		}
		return result{ID: "x"}, nil
	}),
		middleware.Serialize(log),
		middleware.Transaction(fakeFactory{log: log}, nil),
	)

	_, err := commands.Dispatch[createThing, result](context.Background(), bus, createThing{Listing: "lst-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lock listing:lst-1", "begin", "handle", "commit", "unlock listing:lst-1"}, log.events)

	log.events = nil
	fail = true
	_, err = commands.Dispatch[createThing, result](context.Background(), bus, createThing{Listing: "lst-1"})
	assert.ErrorIs(t, err, handlerErr)
	assert.Equal(t, []string{"lock listing:lst-1", "begin", "handle", "rollback", "unlock listing:lst-1"}, log.events)
}

func TestSerializeLockFailure(t *testing.T) {
	locker := &recordingLocker{err: middleware.ErrLockUnavailable}
	bus := middleware.ChainCommands(busWith(func(context.Context, createThing) (result, error) {
		t.Fatal("handler must not run")
		return result{}, nil
	}), middleware.Serialize(locker))

	_, err := commands.Dispatch[createThing, result](context.Background(), bus, createThing{Listing: "lst-9"})
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestRoleAuthorizer(t *testing.T) {
	bus := middleware.ChainCommands(busWith(func(context.Context, createThing) (result, error) {
		return result{ID: "ok"}, nil
	}), middleware.Authorization(middleware.RoleAuthorizer{}))

	ctx := context.Background()
	_, err := commands.Dispatch[createThing, result](ctx, bus, createThing{Roles: []domainuser.Role{domainuser.RoleGuest}})
	assert.ErrorIs(t, err, middleware.ErrRoleRequired)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = commands.Dispatch[createThing, result](ctx, bus, createThing{Roles: []domainuser.Role{domainuser.RoleGuest, domainuser.RoleHost}})
	assert.NoError(t, err)

	_, err = commands.Dispatch[createThing, result](ctx, bus, createThing{Roles: []domainuser.Role{domainuser.RoleAdmin}})
	assert.NoError(t, err)
}

type flakyOutbox struct {
	flushes int
}

func (b *flakyOutbox) Add(context.Context, outbox.EventRecord) error { return nil }

func (b *flakyOutbox) Flush(context.Context) error {
	b.flushes++
	return errors.New("signal closed")
}

func TestOutboxFlushFailureKeepsResult(t *testing.T) {
	box := &flakyOutbox{}
	fail := false
	bus := middleware.ChainCommands(busWith(func(context.Context, createThing) (result, error) {
		if fail {
			return result{}, domainbooking.ErrUnavailable
		}
		return result{ID: "done"}, nil
	}), middleware.OutboxFlush(box, nil))

	res, err := commands.Dispatch[createThing, result](context.Background(), bus, createThing{})
	require.NoError(t, err)
	assert.Equal(t, "done", res.ID)
	assert.Equal(t, 1, box.flushes)

	fail = true
	_, err = commands.Dispatch[createThing, result](context.Background(), bus, createThing{})
	assert.ErrorIs(t, err, domainbooking.ErrUnavailable)
	assert.Equal(t, 1, box.flushes, "failed commands do not wake the publisher")
}
