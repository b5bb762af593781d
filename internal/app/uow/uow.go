package uow

import (
	"context"

	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Listings() domainlistings.Repository
	Bookings() domainbooking.Repository
	Reviews() domainreviews.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry driver state (sessions, transactions) in the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

// Bind attaches unit (and any driver state it carries) to ctx.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(ContextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return withUnit(ctx, unit)
}
