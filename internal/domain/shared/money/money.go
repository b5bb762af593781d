package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrInvalidAmount    = errors.New("money: invalid decimal amount")
	ErrOverflow         = errors.New("money: amount out of range")
)

const (
	minorDigits  = 2
	minorPerUnit = 100
	maxIntDigits = 15
)

// Money keeps amounts in integer minor units (cents) so currency math never goes through binary floats.
type Money struct {
	Amount   int64
	Currency string
}

// New constructs Money from minor units and a three-letter currency code.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseDecimal reads a decimal string such as "85", "85.5" or "19.995" into minor units,
// rounding half-up on the third fractional digit.
func ParseDecimal(raw, currency string) (Money, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Money{}, ErrInvalidAmount
	}
	negative := false
	switch value[0] {
	case '-':
		negative = true
		value = value[1:]
	case '+':
		value = value[1:]
	}
	intPart, fracPart, _ := strings.Cut(value, ".")
	if intPart == "" && fracPart == "" {
		return Money{}, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(intPart) > maxIntDigits || !allDigits(intPart) || !allDigits(fracPart) {
		return Money{}, ErrInvalidAmount
	}
	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	padded := fracPart + strings.Repeat("0", minorDigits)
	cents, _ := strconv.ParseInt(padded[:minorDigits], 10, 64)
	amount := units*minorPerUnit + cents
	if len(fracPart) > minorDigits && fracPart[minorDigits] >= '5' {
		amount++
	}
	if negative {
		amount = -amount
	}
	return New(amount, currency)
}

// MustParse is ParseDecimal that panics; meant for fixtures and tests.
func MustParse(raw, currency string) Money {
	m, err := ParseDecimal(raw, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Multiply multiplies the amount by the provided factor. It fails with
// ErrOverflow instead of wrapping past the int64 range.
func (m Money) Multiply(times int64) (Money, error) {
	if (m.Amount == -1 && times == math.MinInt64) || (times == -1 && m.Amount == math.MinInt64) {
		return Money{}, ErrOverflow
	}
	product := m.Amount * times
	if times != 0 && product/times != m.Amount {
		return Money{}, ErrOverflow
	}
	return Money{Amount: product, Currency: m.Currency}, nil
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Amount > 0
}

// Decimal renders the amount as a fixed two-digit decimal string, e.g. "425.00".
func (m Money) Decimal() string {
	amount := m.Amount
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/minorPerUnit, amount%minorPerUnit)
}

func (m Money) String() string {
	if m.Currency == "" {
		return m.Decimal()
	}
	return m.Decimal() + " " + m.Currency
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
