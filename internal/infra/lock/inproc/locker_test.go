package inproc_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/middleware"
	"rentals/internal/domain/shared/errs"
	"rentals/internal/infra/lock/inproc"
)

func TestLockerIsExclusivePerKey(t *testing.T) {
	locker := inproc.New(time.Second)
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "listing:a")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, locker.Held("listing:a"))
}

func TestLockerKeysAreIndependent(t *testing.T) {
	locker := inproc.New(50 * time.Millisecond)
	unlockA, err := locker.Lock(context.Background(), "listing:a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := locker.Lock(context.Background(), "listing:b")
	require.NoError(t, err)
	unlockB()
}

func TestLockerTimesOut(t *testing.T) {
	locker := inproc.New(20 * time.Millisecond)
	unlock, err := locker.Lock(context.Background(), "listing:a")
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), "listing:a")
	assert.ErrorIs(t, err, middleware.ErrLockUnavailable)
	assert.ErrorIs(t, err, errs.ErrConflict)

	unlock()
	unlock()
	again, err := locker.Lock(context.Background(), "listing:a")
	require.NoError(t, err)
	again()
	assert.Zero(t, locker.Held("listing:a"))
}
