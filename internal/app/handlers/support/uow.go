// Package support holds helpers shared by application handlers.
package support

import (
	"context"

	"rentals/internal/app/uow"
)

// Unit is a unit of work as seen by a handler. When the context already carries
// a unit (the transaction middleware began it) Complete and Release do nothing;
// otherwise the handler owns the unit and must finish it.
type Unit struct {
	uow.UnitOfWork
	managed   bool
	completed bool
}

// Begin returns the unit bound to ctx or starts a new one from factory.
func Begin(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions) (*Unit, context.Context, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return &Unit{UnitOfWork: unit}, ctx, nil
	}
	if factory == nil {
		return nil, ctx, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, err
	}
	return &Unit{UnitOfWork: unit, managed: true}, uow.Bind(ctx, unit), nil
}

// BeginReadOnly is Begin with a read-only transaction.
func BeginReadOnly(ctx context.Context, factory uow.UoWFactory) (*Unit, context.Context, error) {
	return Begin(ctx, factory, uow.TxOptions{ReadOnly: true})
}

// Complete commits a handler-owned unit.
func (u *Unit) Complete(ctx context.Context) error {
	if !u.managed || u.completed {
		return nil
	}
	if err := u.Commit(ctx); err != nil {
		return err
	}
	u.completed = true
	return nil
}

// Release rolls back a handler-owned unit that was not completed. Meant for defer.
func (u *Unit) Release(ctx context.Context) {
	if !u.managed || u.completed {
		return
	}
	u.completed = true
	_ = u.Rollback(ctx)
}
