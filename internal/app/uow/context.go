package uow

import (
	"context"
	"errors"
)

// ErrUnitOfWorkMissing is returned when a handler runs outside Transaction and has no factory of its own.
var ErrUnitOfWorkMissing = errors.New("uow: no unit of work bound to context")

type boundUnitKey struct{}

func withUnit(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, boundUnitKey{}, unit)
}

// FromContext returns the unit attached by Bind.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(boundUnitKey{}).(UnitOfWork)
	return unit, ok && unit != nil
}
