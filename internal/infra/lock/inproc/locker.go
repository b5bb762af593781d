// Package inproc provides a keyed mutex for single-process deployments.
package inproc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rentals/internal/app/middleware"
)

type slot struct {
	ch   chan struct{}
	refs int
}

// Locker hands out one holder per key. Waiters give up after Wait or when ctx ends.
type Locker struct {
	Wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

func New(wait time.Duration) *Locker {
	return &Locker{Wait: wait, slots: make(map[string]*slot)}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	s := l.acquireSlot(key)

	waitCtx := ctx
	if l.Wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.Wait)
		defer cancel()
	}

	select {
	case s.ch <- struct{}{}:
	case <-waitCtx.Done():
		l.releaseSlot(key)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("inproc: waited %s: %w", l.Wait, middleware.ErrLockUnavailable)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.releaseSlot(key)
		})
	}, nil
}

func (l *Locker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots == nil {
		l.slots = make(map[string]*slot)
	}
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Locker) releaseSlot(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Held reports how many callers hold or wait on key.
func (l *Locker) Held(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.slots[key]; ok {
		return s.refs
	}
	return 0
}

var _ middleware.Locker = (*Locker)(nil)
