package memory

import (
	"context"
	"errors"
	"sort"

	appoutbox "rentals/internal/app/outbox"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
)

var (
	ErrReadOnly   = errors.New("memory: unit is read-only")
	ErrUnitClosed = errors.New("memory: unit already finished")
)

type stagedListing struct {
	value *domainlistings.Listing
	base  int64
}

type stagedBooking struct {
	value  *domainbooking.Booking
	base   int64
	insert bool
}

// Unit stages writes until Commit. A unit belongs to one goroutine.
type Unit struct {
	store          *Store
	readOnly       bool
	done           bool
	listings       map[domainlistings.ListingID]stagedListing
	bookings       map[domainbooking.BookingID]stagedBooking
	addedReviews   map[domainreviews.ReviewID]*domainreviews.Review
	deletedReviews map[domainreviews.ReviewID]struct{}
	records        []appoutbox.EventRecord
}

func newUnit(store *Store, readOnly bool) *Unit {
	return &Unit{
		store:          store,
		readOnly:       readOnly,
		listings:       make(map[domainlistings.ListingID]stagedListing),
		bookings:       make(map[domainbooking.BookingID]stagedBooking),
		addedReviews:   make(map[domainreviews.ReviewID]*domainreviews.Review),
		deletedReviews: make(map[domainreviews.ReviewID]struct{}),
	}
}

type unitKey struct{}

func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, unitKey{}, u)
}

func unitFromContext(ctx context.Context) (*Unit, bool) {
	u, ok := ctx.Value(unitKey{}).(*Unit)
	return u, ok && u != nil
}

func (u *Unit) Listings() domainlistings.Repository { return listingRepo{u: u} }
func (u *Unit) Bookings() domainbooking.Repository  { return bookingRepo{u: u} }
func (u *Unit) Reviews() domainreviews.Repository   { return reviewRepo{u: u} }

func (u *Unit) Commit(context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if u.readOnly {
		return nil
	}
	return u.store.commit(u)
}

func (u *Unit) Rollback(context.Context) error {
	u.done = true
	u.records = nil
	return nil
}

func (u *Unit) writable() error {
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnly
	}
	return nil
}

type listingRepo struct{ u *Unit }

func (r listingRepo) ByID(_ context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	if staged, ok := r.u.listings[id]; ok {
		return staged.value.Clone(), nil
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	listing, ok := r.u.store.listings[id]
	if !ok {
		return nil, domainlistings.ErrNotFound
	}
	return listing.Clone(), nil
}

// Save expects listing.Version to be the version it was loaded at and bumps it.
func (r listingRepo) Save(_ context.Context, listing *domainlistings.Listing) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	base := listing.Version
	if staged, ok := r.u.listings[listing.ID]; ok {
		if staged.value.Version != listing.Version {
			return domainlistings.ErrConcurrentUpdate
		}
		base = staged.base
	}
	listing.Version++
	r.u.listings[listing.ID] = stagedListing{value: listing.Clone(), base: base}
	return nil
}

func (r listingRepo) ListByHost(_ context.Context, host domainlistings.HostID) ([]*domainlistings.Listing, error) {
	visible := make(map[domainlistings.ListingID]*domainlistings.Listing)
	r.u.store.mu.RLock()
	for id, l := range r.u.store.listings {
		if l.Host == host {
			visible[id] = l
		}
	}
	r.u.store.mu.RUnlock()
	for id, staged := range r.u.listings {
		if staged.value.Host == host {
			visible[id] = staged.value
		}
	}
	out := make([]*domainlistings.Listing, 0, len(visible))
	for _, l := range visible {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type bookingRepo struct{ u *Unit }

func (r bookingRepo) ByID(_ context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	if staged, ok := r.u.bookings[id]; ok {
		return staged.value.Clone(), nil
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	b, ok := r.u.store.bookings[id]
	if !ok {
		return nil, domainbooking.ErrNotFound
	}
	return b.Clone(), nil
}

func (r bookingRepo) Insert(_ context.Context, b *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.u.bookings[b.ID]; ok {
		return ErrBookingExists
	}
	r.u.store.mu.RLock()
	_, exists := r.u.store.bookings[b.ID]
	r.u.store.mu.RUnlock()
	if exists {
		return ErrBookingExists
	}
	b.Version = 1
	r.u.bookings[b.ID] = stagedBooking{value: b.Clone(), insert: true}
	return nil
}

func (r bookingRepo) Save(_ context.Context, b *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	next := stagedBooking{base: b.Version}
	if staged, ok := r.u.bookings[b.ID]; ok {
		if staged.value.Version != b.Version {
			return domainbooking.ErrConcurrentUpdate
		}
		next.base = staged.base
		next.insert = staged.insert
	}
	b.Version++
	next.value = b.Clone()
	r.u.bookings[b.ID] = next
	return nil
}

func (r bookingRepo) visible(keep func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	merged := make(map[domainbooking.BookingID]*domainbooking.Booking)
	r.u.store.mu.RLock()
	for id, b := range r.u.store.bookings {
		merged[id] = b
	}
	r.u.store.mu.RUnlock()
	for id, staged := range r.u.bookings {
		merged[id] = staged.value
	}
	out := make([]*domainbooking.Booking, 0)
	for _, b := range merged {
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r bookingRepo) ListByListing(_ context.Context, listingID domainlistings.ListingID, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	return r.visible(func(b *domainbooking.Booking) bool {
		return b.ListingID == listingID && statusIn(b.Status, statuses)
	}), nil
}

func (r bookingRepo) ListByGuest(_ context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.visible(func(b *domainbooking.Booking) bool { return b.GuestID == guestID }), nil
}

func (r bookingRepo) ListByListings(_ context.Context, ids []domainlistings.ListingID) ([]*domainbooking.Booking, error) {
	wanted := make(map[domainlistings.ListingID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	return r.visible(func(b *domainbooking.Booking) bool {
		_, ok := wanted[b.ListingID]
		return ok
	}), nil
}

func statusIn(s domainbooking.Status, statuses []domainbooking.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

type reviewRepo struct{ u *Unit }

func (r reviewRepo) visible(keep func(*domainreviews.Review) bool) []*domainreviews.Review {
	out := make([]*domainreviews.Review, 0)
	r.u.store.mu.RLock()
	for id, review := range r.u.store.reviews {
		if _, gone := r.u.deletedReviews[id]; gone {
			continue
		}
		if keep(review) {
			out = append(out, review.Clone())
		}
	}
	r.u.store.mu.RUnlock()
	for _, review := range r.u.addedReviews {
		if keep(review) {
			out = append(out, review.Clone())
		}
	}
	sortReviews(out)
	return out
}

func (r reviewRepo) ByID(_ context.Context, id domainreviews.ReviewID) (*domainreviews.Review, error) {
	items := r.visible(func(review *domainreviews.Review) bool { return review.ID == id })
	if len(items) == 0 {
		return nil, domainreviews.ErrNotFound
	}
	return items[0], nil
}

func (r reviewRepo) ByAuthorAndListing(_ context.Context, authorID string, listingID domainlistings.ListingID) (*domainreviews.Review, error) {
	items := r.visible(func(review *domainreviews.Review) bool {
		return review.AuthorID == authorID && review.ListingID == listingID
	})
	if len(items) == 0 {
		return nil, domainreviews.ErrNotFound
	}
	return items[0], nil
}

func (r reviewRepo) ListByListing(_ context.Context, listingID domainlistings.ListingID, limit, offset int) ([]*domainreviews.Review, error) {
	items := r.visible(func(review *domainreviews.Review) bool { return review.ListingID == listingID })
	return page(items, limit, offset), nil
}

func (r reviewRepo) Insert(ctx context.Context, review *domainreviews.Review) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, err := r.ByAuthorAndListing(ctx, review.AuthorID, review.ListingID); err == nil {
		return domainreviews.ErrDuplicate
	}
	r.u.addedReviews[review.ID] = review.Clone()
	return nil
}

func (r reviewRepo) Delete(ctx context.Context, id domainreviews.ReviewID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.u.addedReviews[id]; ok {
		delete(r.u.addedReviews, id)
		return nil
	}
	if _, err := r.ByID(ctx, id); err != nil {
		return err
	}
	r.u.deletedReviews[id] = struct{}{}
	return nil
}
