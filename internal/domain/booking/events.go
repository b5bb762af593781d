package booking

import (
	"time"

	"rentals/internal/domain/listings"
)

type BookingRequested struct {
	BookingID BookingID          `json:"booking_id"`
	ListingID listings.ListingID `json:"listing_id"`
	GuestID   string             `json:"guest_id"`
	CheckIn   string             `json:"check_in"`
	CheckOut  string             `json:"check_out"`
	Guests    int                `json:"guests"`
	Total     string             `json:"total_price"`
	Currency  string             `json:"currency"`
	At        time.Time          `json:"at"`
}

func (e BookingRequested) EventName() string     { return "booking.requested" }
func (e BookingRequested) AggregateID() string   { return string(e.BookingID) }
func (e BookingRequested) OccurredAt() time.Time { return e.At }

type BookingStatusChanged struct {
	BookingID BookingID          `json:"booking_id"`
	ListingID listings.ListingID `json:"listing_id"`
	From      Status             `json:"from"`
	To        Status             `json:"to"`
	ActorID   string             `json:"actor_id"`
	At        time.Time          `json:"at"`
}

func (e BookingStatusChanged) EventName() string     { return "booking.status_changed" }
func (e BookingStatusChanged) AggregateID() string   { return string(e.BookingID) }
func (e BookingStatusChanged) OccurredAt() time.Time { return e.At }
