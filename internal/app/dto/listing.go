package dto

import (
	"time"

	domainlistings "rentals/internal/domain/listings"
)

type Listing struct {
	ID          string        `json:"id"`
	HostID      string        `json:"host_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	City        string        `json:"city"`
	Country     string        `json:"country"`
	NightlyRate string        `json:"nightly_rate"`
	Currency    string        `json:"currency"`
	MaxGuests   int           `json:"max_guests"`
	Active      bool          `json:"active"`
	Amenities   []string      `json:"amenities"`
	Photos      []string      `json:"photos"`
	Rating      RatingSummary `json:"rating"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func MapListing(l *domainlistings.Listing) Listing {
	if l == nil {
		return Listing{}
	}
	return Listing{
		ID:          string(l.ID),
		HostID:      string(l.Host),
		Title:       l.Title,
		Description: l.Description,
		City:        l.City,
		Country:     l.Country,
		NightlyRate: l.NightlyRate.Decimal(),
		Currency:    l.NightlyRate.Currency,
		MaxGuests:   l.MaxGuests,
		Active:      l.Active,
		Amenities:   append([]string{}, l.Amenities...),
		Photos:      append([]string{}, l.Photos...),
		Rating:      MapRating(l.Rating),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}
