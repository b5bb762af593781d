package listings

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"rentals/internal/domain/shared/errs"
	"rentals/internal/domain/shared/events"
	"rentals/internal/domain/shared/money"
)

var (
	ErrNotFound         = errs.NotFound("listings: not found")
	ErrIDRequired       = errs.Validation("listings: id is required")
	ErrHostRequired     = errs.Validation("listings: host is required")
	ErrTitleRequired    = errs.Validation("listings: title is required")
	ErrLocationRequired = errs.Validation("listings: city and country are required")
	ErrNightlyRate      = errs.Validation("listings: nightly rate must be positive")
	ErrNightlyRateLimit = errs.Validation("listings: nightly rate must not exceed 99999999.99")
	ErrMaxGuests        = errs.Validation("listings: max guests must be at least 1")
	ErrInvalidPhotoURL  = errs.Validation("listings: photo url must be an absolute http(s) url")
	ErrNotOwner         = errs.Forbidden("listings: only the host can manage this listing")
	ErrConcurrentUpdate = errs.Conflict("listings: concurrent update detected")
)

// MaxNightlyRate is the largest nightly rate in minor units (99,999,999.99).
const MaxNightlyRate int64 = 9_999_999_999

type ListingID string
type HostID string

// RatingSummary is the derived review aggregate stored on a listing.
// The average is kept in tenths so 4.7 is stored as 47.
type RatingSummary struct {
	AverageTenths int
	Count         int
}

func (r RatingSummary) Average() float64 {
	return float64(r.AverageTenths) / 10
}

func (r RatingSummary) String() string {
	return fmt.Sprintf("%d.%d", r.AverageTenths/10, r.AverageTenths%10)
}

type Listing struct {
	ID          ListingID
	Host        HostID
	Title       string
	Description string
	City        string
	Country     string
	NightlyRate money.Money
	MaxGuests   int
	Active      bool
	Amenities   []string
	Photos      []string
	Rating      RatingSummary
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	ListByHost(ctx context.Context, host HostID) ([]*Listing, error)
}

type CreateParams struct {
	ID          ListingID
	Host        HostID
	Title       string
	Description string
	City        string
	Country     string
	NightlyRate money.Money
	MaxGuests   int
	Amenities   []string
	Photos      []string
	Active      bool
	Now         time.Time
}

func NewListing(params CreateParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, ErrHostRequired
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if strings.TrimSpace(params.City) == "" || strings.TrimSpace(params.Country) == "" {
		return nil, ErrLocationRequired
	}
	if !params.NightlyRate.IsPositive() {
		return nil, ErrNightlyRate
	}
	if params.NightlyRate.Amount > MaxNightlyRate {
		return nil, ErrNightlyRateLimit
	}
	if params.MaxGuests < 1 {
		return nil, ErrMaxGuests
	}
	photos, err := NormalizePhotos(params.Photos)
	if err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	listing := &Listing{
		ID:          params.ID,
		Host:        params.Host,
		Title:       strings.TrimSpace(params.Title),
		Description: strings.TrimSpace(params.Description),
		City:        strings.TrimSpace(params.City),
		Country:     strings.TrimSpace(params.Country),
		NightlyRate: params.NightlyRate,
		MaxGuests:   params.MaxGuests,
		Active:      params.Active,
		Amenities:   NormalizeAmenities(params.Amenities),
		Photos:      photos,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	listing.Record(ListingCreated{ListingID: listing.ID, HostID: listing.Host, Active: listing.Active, At: now})
	return listing, nil
}

// IsHostedBy reports whether userID owns the listing.
func (l *Listing) IsHostedBy(userID string) bool {
	return string(l.Host) == userID
}

func (l *Listing) Activate(now time.Time) {
	if l.Active {
		return
	}
	l.Active = true
	l.UpdatedAt = now.UTC()
	l.Record(ListingAvailabilityChanged{ListingID: l.ID, Active: true, At: l.UpdatedAt})
}

func (l *Listing) Deactivate(now time.Time) {
	if !l.Active {
		return
	}
	l.Active = false
	l.UpdatedAt = now.UTC()
	l.Record(ListingAvailabilityChanged{ListingID: l.ID, Active: false, At: l.UpdatedAt})
}

func (l *Listing) AddPhoto(rawURL string, now time.Time) error {
	photo, err := normalizePhoto(rawURL)
	if err != nil {
		return err
	}
	l.Photos = append(l.Photos, photo)
	l.UpdatedAt = now.UTC()
	l.Record(ListingPhotoAdded{ListingID: l.ID, URL: photo, At: l.UpdatedAt})
	return nil
}

// ApplyRating overwrites the stored rating summary with a freshly computed one.
func (l *Listing) ApplyRating(summary RatingSummary, now time.Time) {
	l.Rating = summary
	l.UpdatedAt = now.UTC()
	l.Record(RatingRecomputed{ListingID: l.ID, Average: summary.Average(), Count: summary.Count, At: l.UpdatedAt})
}

// NormalizeAmenities trims, lower-cases and de-duplicates tags keeping first-seen order.
func NormalizeAmenities(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func NormalizePhotos(urls []string) ([]string, error) {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		photo, err := normalizePhoto(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, photo)
	}
	return out, nil
}

func normalizePhoto(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidPhotoURL
	}
	return u.String(), nil
}

// Clone returns a deep copy without pending events.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	cp := *l
	cp.EventRecorder = events.EventRecorder{}
	cp.Amenities = append([]string(nil), l.Amenities...)
	cp.Photos = append([]string(nil), l.Photos...)
	return &cp
}
