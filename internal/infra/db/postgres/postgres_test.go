package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	"rentals/internal/domain/shared/errs"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
	assert.True(t, isUniqueViolation(dup))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", dup)))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("23505")))
}

func TestFactoryRequiresDatabase(t *testing.T) {
	_, err := Factory{}.Begin(context.Background(), uow.TxOptions{})
	require.ErrorIs(t, err, ErrUnitOfWorkNotConfigured)
}

func TestTxFromContextWithoutUnit(t *testing.T) {
	_, ok := txFromContext(context.Background())
	assert.False(t, ok)
}

type execErrQuerier struct {
	err error
}

func (q execErrQuerier) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, q.err
}

func (q execErrQuerier) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, q.err
}

func (q execErrQuerier) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func TestInsertOverlappingBookingIsUnavailable(t *testing.T) {
	repo := &BookingRepository{q: execErrQuerier{err: &pq.Error{Code: "23P01", Message: "conflicting key value violates exclusion constraint"}}}
	err := repo.Insert(context.Background(), &domainbooking.Booking{ID: "bk-1", Status: domainbooking.StatusPending})
	assert.ErrorIs(t, err, domainbooking.ErrUnavailable)
	assert.ErrorIs(t, err, errs.ErrConflict)

	repo.q = execErrQuerier{err: &pq.Error{Code: "23505"}}
	err = repo.Insert(context.Background(), &domainbooking.Booking{ID: "bk-1"})
	assert.ErrorIs(t, err, ErrBookingExists)
}

func TestSchemaGuardsActiveOverlaps(t *testing.T) {
	assert.Contains(t, schema, "EXCLUDE USING gist")
	assert.Contains(t, schema, "WHERE (status IN ('pending', 'confirmed'))")
}
