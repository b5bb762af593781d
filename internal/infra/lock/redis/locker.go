// Package redis implements the per-listing lock on a shared Redis so that
// several API replicas serialize the same scopes.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"rentals/internal/app/middleware"
)

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

type Locker struct {
	Client     goredis.Cmdable
	TTL        time.Duration
	Wait       time.Duration
	RetryEvery time.Duration
	Prefix     string
	Token      func() string
	Logger     *slog.Logger
}

func New(client goredis.Cmdable, ttl, wait time.Duration) *Locker {
	return &Locker{Client: client, TTL: ttl, Wait: wait, Prefix: "lock:"}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.Prefix + key
	token := l.token()
	deadline := time.Now().Add(l.Wait)
	for {
		ok, err := l.Client.SetNX(ctx, redisKey, token, l.ttl()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", redisKey, err)
		}
		if ok {
			return l.unlocker(redisKey, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("redis lock %s: %w", redisKey, middleware.ErrLockUnavailable)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryEvery()):
		}
	}
}

func (l *Locker) unlocker(redisKey, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.Client.Eval(ctx, releaseScript, []string{redisKey}, token).Err(); err != nil && l.Logger != nil {
			l.Logger.Warn("redis lock release failed", "key", redisKey, "err", err)
		}
	}
}

func (l *Locker) token() string {
	if l.Token != nil {
		return l.Token()
	}
	return uuid.NewString()
}

func (l *Locker) ttl() time.Duration {
	if l.TTL > 0 {
		return l.TTL
	}
	return 10 * time.Second
}

func (l *Locker) retryEvery() time.Duration {
	if l.RetryEvery > 0 {
		return l.RetryEvery
	}
	return 25 * time.Millisecond
}

var _ middleware.Locker = (*Locker)(nil)
