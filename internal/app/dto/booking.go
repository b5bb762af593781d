package dto

import (
	"time"

	domainbooking "rentals/internal/domain/booking"
	"rentals/internal/domain/shared/daterange"
)

// Booking is the public booking payload. Dates are YYYY-MM-DD, money is a decimal string.
type Booking struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	GuestID    string    `json:"guest_id"`
	CheckIn    string    `json:"check_in"`
	CheckOut   string    `json:"check_out"`
	Guests     int       `json:"guests"`
	Nights     int       `json:"nights"`
	TotalPrice string    `json:"total_price"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

func MapBooking(b *domainbooking.Booking) Booking {
	if b == nil {
		return Booking{}
	}
	return Booking{
		ID:         string(b.ID),
		ListingID:  string(b.ListingID),
		GuestID:    b.GuestID,
		CheckIn:    b.Range.CheckIn.Format(daterange.Layout),
		CheckOut:   b.Range.CheckOut.Format(daterange.Layout),
		Guests:     b.Guests,
		Nights:     b.Nights,
		TotalPrice: b.TotalPrice.Decimal(),
		Currency:   b.TotalPrice.Currency,
		Status:     string(b.Status),
		Note:       b.Note,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func MapBookings(items []*domainbooking.Booking) BookingCollection {
	out := BookingCollection{Items: make([]Booking, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b))
	}
	return out
}

// Availability answers whether a stay can be booked and what it would cost.
type Availability struct {
	ListingID string `json:"listing_id"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Available bool   `json:"available"`
	Nights    int    `json:"nights"`
	Total     string `json:"total_price"`
	Currency  string `json:"currency"`
}
