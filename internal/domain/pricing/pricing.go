// Package pricing derives the stay length and total for a booking.
package pricing

import (
	"errors"
	"time"

	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/errs"
	"rentals/internal/domain/shared/money"
)

var (
	ErrInvalidRange  = errs.Validation("pricing: stay must cover at least one night")
	ErrInvalidRate   = errs.Validation("pricing: nightly rate must be positive")
	ErrTotalTooLarge = errs.Validation("pricing: stay total is too large")
)

type Quote struct {
	Nights      int
	NightlyRate money.Money
	Total       money.Money
}

// ComputeTotal returns nights (started days) and nights x rate in minor units.
func ComputeTotal(checkIn, checkOut time.Time, nightlyRate money.Money) (Quote, error) {
	dr := daterange.DateRange{CheckIn: checkIn.UTC(), CheckOut: checkOut.UTC()}
	return Compute(dr, nightlyRate)
}

func Compute(dr daterange.DateRange, nightlyRate money.Money) (Quote, error) {
	nights := dr.Nights()
	if nights <= 0 {
		return Quote{}, ErrInvalidRange
	}
	if !nightlyRate.IsPositive() {
		return Quote{}, ErrInvalidRate
	}
	total, err := nightlyRate.Multiply(int64(nights))
	if err != nil {
		if errors.Is(err, money.ErrOverflow) {
			return Quote{}, ErrTotalTooLarge
		}
		return Quote{}, err
	}
	return Quote{
		Nights:      nights,
		NightlyRate: nightlyRate,
		Total:       total,
	}, nil
}
