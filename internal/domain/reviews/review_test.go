package reviews_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/domain/listings"
	"rentals/internal/domain/reviews"
	"rentals/internal/domain/shared/errs"
)

var now = time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC)

func TestSummarize(t *testing.T) {
	cases := []struct {
		name    string
		ratings []int
		want    listings.RatingSummary
	}{
		{"empty", nil, listings.RatingSummary{}},
		{"single", []int{4}, listings.RatingSummary{AverageTenths: 40, Count: 1}},
		{"five four five", []int{5, 4, 5}, listings.RatingSummary{AverageTenths: 47, Count: 3}},
		{"rounds half up", []int{4, 4, 4, 5}, listings.RatingSummary{AverageTenths: 43, Count: 4}},
		{"rounds down", []int{1, 2, 2}, listings.RatingSummary{AverageTenths: 17, Count: 3}},
		{"all fives", []int{5, 5, 5, 5, 5}, listings.RatingSummary{AverageTenths: 50, Count: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, reviews.Summarize(tc.ratings))
		})
	}
}

func TestSummarizeIsIdempotent(t *testing.T) {
	items := []*reviews.Review{{Rating: 5}, {Rating: 4}, {Rating: 5}}
	first := reviews.SummarizeReviews(items)
	second := reviews.SummarizeReviews(items)
	assert.Equal(t, first, second)
	assert.Equal(t, "4.7", first.String())
}

func TestSubmitValidation(t *testing.T) {
	base := reviews.SubmitParams{ID: "r1", AuthorID: "guest-1", ListingID: "lst-1", Rating: 5, CreatedAt: now}

	for _, rating := range []int{0, 6, -1} {
		p := base
		p.Rating = rating
		_, err := reviews.Submit(p)
		assert.ErrorIs(t, err, reviews.ErrInvalidRating)
		assert.ErrorIs(t, err, errs.ErrValidation)
	}

	p := base
	p.Comment = strings.Repeat("é", 1001)
	_, err := reviews.Submit(p)
	assert.ErrorIs(t, err, reviews.ErrCommentTooLong)

	p.Comment = strings.Repeat("é", 1000)
	r, err := reviews.Submit(p)
	require.NoError(t, err)
	require.Len(t, r.PendingEvents(), 1)
	assert.Equal(t, "review.submitted", r.PendingEvents()[0].EventName())
}

func TestRemoveRequiresAuthorOrAdmin(t *testing.T) {
	r, err := reviews.Submit(reviews.SubmitParams{ID: "r1", AuthorID: "guest-1", ListingID: "lst-1", Rating: 3, CreatedAt: now})
	require.NoError(t, err)
	r.ClearEvents()

	assert.ErrorIs(t, r.Remove("someone-else", false, now), reviews.ErrNotAuthor)
	assert.Empty(t, r.PendingEvents())

	require.NoError(t, r.Remove("admin-1", true, now))
	require.NoError(t, r.Remove("guest-1", false, now))
	assert.Len(t, r.PendingEvents(), 2)
}
