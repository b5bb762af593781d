package reviews

import "rentals/internal/domain/listings"

// Summarize averages ratings to one decimal, rounding half-up. No reviews yields {0, 0}.
func Summarize(ratings []int) listings.RatingSummary {
	count := len(ratings)
	if count == 0 {
		return listings.RatingSummary{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	// round(sum/count, 1) == floor((20*sum + count) / (2*count)) / 10
	tenths := (20*sum + count) / (2 * count)
	return listings.RatingSummary{AverageTenths: tenths, Count: count}
}

func SummarizeReviews(items []*Review) listings.RatingSummary {
	ratings := make([]int, 0, len(items))
	for _, r := range items {
		ratings = append(ratings, r.Rating)
	}
	return Summarize(ratings)
}
