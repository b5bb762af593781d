package reviews

import (
	"time"

	"rentals/internal/domain/listings"
)

type ReviewSubmitted struct {
	ReviewID  ReviewID           `json:"review_id"`
	ListingID listings.ListingID `json:"listing_id"`
	AuthorID  string             `json:"author_id"`
	Rating    int                `json:"rating"`
	At        time.Time          `json:"at"`
}

func (e ReviewSubmitted) EventName() string     { return "review.submitted" }
func (e ReviewSubmitted) AggregateID() string   { return string(e.ReviewID) }
func (e ReviewSubmitted) OccurredAt() time.Time { return e.At }

type ReviewDeleted struct {
	ReviewID  ReviewID           `json:"review_id"`
	ListingID listings.ListingID `json:"listing_id"`
	ActorID   string             `json:"actor_id"`
	At        time.Time          `json:"at"`
}

func (e ReviewDeleted) EventName() string     { return "review.deleted" }
func (e ReviewDeleted) AggregateID() string   { return string(e.ReviewID) }
func (e ReviewDeleted) OccurredAt() time.Time { return e.At }
