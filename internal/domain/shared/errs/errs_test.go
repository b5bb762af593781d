package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"rentals/internal/domain/shared/errs"
)

var errSample = errs.Conflict("sample: already taken")

func TestSentinelMatchesItsKind(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", errSample)

	assert.ErrorIs(t, wrapped, errSample)
	assert.ErrorIs(t, wrapped, errs.ErrConflict)
	assert.NotErrorIs(t, wrapped, errs.ErrValidation)
	assert.Equal(t, "handler: sample: already taken", wrapped.Error())
}

func TestKindOf(t *testing.T) {
	kind, ok := errs.KindOf(fmt.Errorf("wrap: %w", errs.Forbidden("nope")))
	assert.True(t, ok)
	assert.Equal(t, errs.KindForbidden, kind)

	kind, ok = errs.KindOf(fmt.Errorf("wrap: %w", errs.ErrNotFound))
	assert.True(t, ok)
	assert.Equal(t, errs.KindNotFound, kind)

	_, ok = errs.KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestNewWithUnknownKind(t *testing.T) {
	err := errs.New("mystery", "boom")
	_, ok := errs.KindOf(err)
	assert.False(t, ok)
	assert.EqualError(t, err, "boom")

	err = errs.New(errs.KindInvalidTransition, "state: no")
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}
