// Package memory keeps all aggregates in process. Units of work stage their
// writes and apply them atomically on commit with optimistic version checks.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
	"rentals/internal/domain/shared/errs"
	infraoutbox "rentals/internal/infra/outbox"
)

var ErrBookingExists = errs.Conflict("memory: booking already exists")

type outboxEntry struct {
	msg       infraoutbox.Message
	state     string
	nextAt    time.Time
	claimedBy string
	lastError string
}

// Store is the committed state shared by all units.
type Store struct {
	mu       sync.RWMutex
	listings map[domainlistings.ListingID]*domainlistings.Listing
	bookings map[domainbooking.BookingID]*domainbooking.Booking
	reviews  map[domainreviews.ReviewID]*domainreviews.Review
	outbox   []*outboxEntry
	signal   infraoutbox.Signal
}

func NewStore() *Store {
	return &Store{
		listings: make(map[domainlistings.ListingID]*domainlistings.Listing),
		bookings: make(map[domainbooking.BookingID]*domainbooking.Booking),
		reviews:  make(map[domainreviews.ReviewID]*domainreviews.Review),
		signal:   infraoutbox.NewSignal(),
	}
}

// Begin starts a staged unit of work.
func (s *Store) Begin(_ context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	return newUnit(s, opts.ReadOnly), nil
}

// Ping always succeeds; it lets the store sit behind readiness checks.
func (s *Store) Ping(context.Context) error {
	return nil
}

// SeedListing stores a listing directly, bypassing units. Used for fixtures.
func (s *Store) SeedListing(listing *domainlistings.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := listing.Clone()
	if cp.Version == 0 {
		cp.Version = 1
	}
	s.listings[cp.ID] = cp
}

func (s *Store) commit(u *Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, staged := range u.listings {
		var version int64
		if current, ok := s.listings[id]; ok {
			version = current.Version
		}
		if version != staged.base {
			return domainlistings.ErrConcurrentUpdate
		}
	}
	for id, staged := range u.bookings {
		current, ok := s.bookings[id]
		switch {
		case staged.insert && ok:
			return ErrBookingExists
		case !staged.insert && (!ok || current.Version != staged.base):
			return domainbooking.ErrConcurrentUpdate
		}
	}
	for id := range u.deletedReviews {
		if _, ok := s.reviews[id]; !ok {
			return domainreviews.ErrNotFound
		}
	}
	for _, review := range u.addedReviews {
		for _, existing := range s.reviews {
			if _, gone := u.deletedReviews[existing.ID]; gone {
				continue
			}
			if existing.AuthorID == review.AuthorID && existing.ListingID == review.ListingID {
				return domainreviews.ErrDuplicate
			}
		}
	}

	for id, staged := range u.listings {
		s.listings[id] = staged.value
	}
	for id, staged := range u.bookings {
		s.bookings[id] = staged.value
	}
	for id := range u.deletedReviews {
		delete(s.reviews, id)
	}
	for id, review := range u.addedReviews {
		s.reviews[id] = review
	}
	now := time.Now().UTC()
	for _, rec := range u.records {
		s.outbox = append(s.outbox, &outboxEntry{
			msg: infraoutbox.Message{
				ID:         rec.ID,
				Name:       rec.Name,
				Payload:    append([]byte(nil), rec.Payload...),
				OccurredAt: rec.OccurredAt,
				Aggregate:  rec.Aggregate,
				Headers:    rec.Headers,
			},
			state:  stateNew,
			nextAt: now,
		})
	}
	return nil
}

func sortReviews(items []*domainreviews.Review) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
