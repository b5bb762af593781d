package daterange

import (
	"math"
	"strings"
	"time"

	"rentals/internal/domain/shared/errs"
)

// Layout is the wire format for stay dates.
const Layout = "2006-01-02"

var (
	ErrInvalidRange = errs.Validation("daterange: check-out must be after check-in")
	ErrInvalidDate  = errs.Validation("daterange: date must be formatted as YYYY-MM-DD")
)

// DateRange represents a half-open interval [checkIn, checkOut)
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (DateRange, error) {
	in, err := ParseDate(checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := ParseDate(checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return New(in, out)
}

func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t.UTC(), nil
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights counts started nights between check-in and check-out.
func (dr DateRange) Nights() int {
	d := dr.CheckOut.Sub(dr.CheckIn)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) StartsBefore(t time.Time) bool {
	return dr.CheckIn.Before(Day(t))
}

func (dr DateRange) String() string {
	return dr.CheckIn.Format(Layout) + ".." + dr.CheckOut.Format(Layout)
}
