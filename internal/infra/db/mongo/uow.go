package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
	"rentals/internal/domain/shared/errs"
)

var (
	ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")
	ErrWriteConflict           = errs.Conflict("mongo: transaction write conflict, retry")
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
// Repositories pick the session up from the context bound by uow.Bind.
type Factory struct {
	DB *mongo.Database
}

func NewFactory(c *Client) Factory {
	return Factory{DB: c.DB}
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(readconcern.Snapshot()).SetWriteConcern(f.DB.WriteConcern())
	if opts.ReadOnly {
		txnOpts = options.Transaction().SetReadConcern(readconcern.Majority())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:  session,
		listings: NewListingRepository(f.DB),
		bookings: NewBookingRepository(f.DB),
		reviews:  NewReviewRepository(f.DB),
	}, nil
}

type Unit struct {
	session mongo.Session

	listings *ListingRepository
	bookings *BookingRepository
	reviews  *ReviewRepository
}

func (u *Unit) Listings() domainlistings.Repository { return u.listings }
func (u *Unit) Bookings() domainbooking.Repository  { return u.bookings }
func (u *Unit) Reviews() domainreviews.Repository   { return u.reviews }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return translateWriteError(u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures the Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

// translateWriteError maps transaction write conflicts to a retryable conflict.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
		return fmt.Errorf("%w: %v", ErrWriteConflict, err)
	}
	return err
}

var (
	_ uow.UoWFactory      = Factory{}
	_ uow.ContextInjector = (*Unit)(nil)
)
