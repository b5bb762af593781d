package postgres

import (
	"context"
	"database/sql"
	"errors"

	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

type Factory struct {
	DB *sql.DB
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx, err := f.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, err
	}
	return &Unit{tx: tx}, nil
}

type Unit struct {
	tx *sql.Tx
}

func (u *Unit) Listings() domainlistings.Repository { return &ListingRepository{q: u.tx} }
func (u *Unit) Bookings() domainbooking.Repository  { return &BookingRepository{q: u.tx} }
func (u *Unit) Reviews() domainreviews.Repository   { return &ReviewRepository{q: u.tx} }

func (u *Unit) Commit(context.Context) error {
	return u.tx.Commit()
}

func (u *Unit) Rollback(context.Context) error {
	err := u.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

type txKey struct{}

// InjectContext exposes the transaction to the outbox store.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, txKey{}, u.tx)
}

func txFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok && tx != nil
}

var (
	_ uow.UoWFactory      = Factory{}
	_ uow.ContextInjector = (*Unit)(nil)
)
