package listings

import "time"

type ListingCreated struct {
	ListingID ListingID `json:"listing_id"`
	HostID    HostID    `json:"host_id"`
	Active    bool      `json:"active"`
	At        time.Time `json:"at"`
}

func (e ListingCreated) EventName() string     { return "listing.created" }
func (e ListingCreated) AggregateID() string   { return string(e.ListingID) }
func (e ListingCreated) OccurredAt() time.Time { return e.At }

type ListingAvailabilityChanged struct {
	ListingID ListingID `json:"listing_id"`
	Active    bool      `json:"active"`
	At        time.Time `json:"at"`
}

func (e ListingAvailabilityChanged) EventName() string {
	if e.Active {
		return "listing.activated"
	}
	return "listing.deactivated"
}
func (e ListingAvailabilityChanged) AggregateID() string   { return string(e.ListingID) }
func (e ListingAvailabilityChanged) OccurredAt() time.Time { return e.At }

type ListingPhotoAdded struct {
	ListingID ListingID `json:"listing_id"`
	URL       string    `json:"url"`
	At        time.Time `json:"at"`
}

func (e ListingPhotoAdded) EventName() string     { return "listing.photo_added" }
func (e ListingPhotoAdded) AggregateID() string   { return string(e.ListingID) }
func (e ListingPhotoAdded) OccurredAt() time.Time { return e.At }

type RatingRecomputed struct {
	ListingID ListingID `json:"listing_id"`
	Average   float64   `json:"average"`
	Count     int       `json:"count"`
	At        time.Time `json:"at"`
}

func (e RatingRecomputed) EventName() string     { return "listing.rating_recomputed" }
func (e RatingRecomputed) AggregateID() string   { return string(e.ListingID) }
func (e RatingRecomputed) OccurredAt() time.Time { return e.At }
