package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/middleware"
	"rentals/internal/domain/shared/errs"
	redislock "rentals/internal/infra/lock/redis"
)

const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

func newLocker(wait time.Duration) (*redislock.Locker, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	l := redislock.New(db, 5*time.Second, wait)
	l.Token = func() string { return "tok-1" }
	l.RetryEvery = time.Millisecond
	return l, mock
}

func TestLockAndRelease(t *testing.T) {
	l, mock := newLocker(0)
	mock.ExpectSetNX("lock:listing:a", "tok-1", 5*time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"lock:listing:a"}, "tok-1").SetVal(int64(1))

	unlock, err := l.Lock(context.Background(), "listing:a")
	require.NoError(t, err)
	unlock()
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockRetriesUntilFree(t *testing.T) {
	l, mock := newLocker(time.Second)
	mock.ExpectSetNX("lock:listing:a", "tok-1", 5*time.Second).SetVal(false)
	mock.ExpectSetNX("lock:listing:a", "tok-1", 5*time.Second).SetVal(true)

	_, err := l.Lock(context.Background(), "listing:a")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockBusy(t *testing.T) {
	l, mock := newLocker(0)
	mock.ExpectSetNX("lock:listing:a", "tok-1", 5*time.Second).SetVal(false)

	_, err := l.Lock(context.Background(), "listing:a")
	assert.ErrorIs(t, err, middleware.ErrLockUnavailable)
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockRedisError(t *testing.T) {
	l, mock := newLocker(0)
	mock.ExpectSetNX("lock:listing:a", "tok-1", 5*time.Second).SetErr(errors.New("connection refused"))

	_, err := l.Lock(context.Background(), "listing:a")
	assert.ErrorContains(t, err, "connection refused")
	_, tagged := errs.KindOf(err)
	assert.False(t, tagged)
}
