package middleware

import (
	"context"
	"fmt"

	"rentals/internal/app/commands"
	"rentals/internal/domain/shared/errs"
)

// ErrLockUnavailable is returned by lockers that could not acquire a scope in time.
var ErrLockUnavailable = errs.Conflict("middleware: resource is busy, retry later")

// Locker grants mutual exclusion over a named scope.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ScopedCommand names the scope it must hold exclusively.
type ScopedCommand interface {
	commands.Command
	SerializationScope() string
}

// ScopeResolver derives a scope for commands that do not carry one directly.
// ok=false means the resolver does not handle cmd.
type ScopeResolver func(ctx context.Context, cmd commands.Command) (scope string, ok bool, err error)

// ListingScope is the lock key for everything that reads-then-writes a listing's bookings or reviews.
func ListingScope(listingID string) string {
	return "listing:" + listingID
}

// Serialize holds the command's scope across everything inside it. Put it
// outside Transaction so the lock outlives commit and rollback.
func Serialize(locker Locker, resolvers ...ScopeResolver) CommandMiddleware {
	if locker == nil {
		panic("middleware: locker required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			scope, err := resolveScope(ctx, cmd, resolvers)
			if err != nil {
				return nil, err
			}
			if scope == "" {
				return nextFn(ctx, cmd)
			}
			unlock, err := locker.Lock(ctx, scope)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", scope, err)
			}
			defer unlock()
			return nextFn(ctx, cmd)
		})
	}
}

func resolveScope(ctx context.Context, cmd commands.Command, resolvers []ScopeResolver) (string, error) {
	if scoped, ok := cmd.(ScopedCommand); ok {
		return scoped.SerializationScope(), nil
	}
	for _, resolve := range resolvers {
		scope, ok, err := resolve(ctx, cmd)
		if err != nil {
			return "", err
		}
		if ok {
			return scope, nil
		}
	}
	return "", nil
}
