package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	reviewsapp "rentals/internal/app/handlers/reviews"
	"rentals/internal/app/queries"
)

type ReviewsHTTP interface {
	Create(c *gin.Context)
	Delete(c *gin.Context)
	List(c *gin.Context)
	Recompute(c *gin.Context)
}

type ReviewsHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h ReviewsHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req createReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid review payload")
		return
	}
	result, err := commands.Dispatch[reviewsapp.CreateReviewCommand, reviewsapp.CreateReviewResult](c.Request.Context(), h.Commands, reviewsapp.CreateReviewCommand{
		ListingID:       c.Param("id"),
		AuthorID:        user.ID,
		Rating:          req.Rating,
		Comment:         req.Comment,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h ReviewsHandler) Delete(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	result, err := commands.Dispatch[reviewsapp.DeleteReviewCommand, reviewsapp.DeleteReviewResult](c.Request.Context(), h.Commands, reviewsapp.DeleteReviewCommand{
		ReviewID:   c.Param("id"),
		ActorID:    user.ID,
		ActorRoles: user.Roles,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReviewsHandler) List(c *gin.Context) {
	result, err := queries.Ask[reviewsapp.ListListingReviewsQuery, dto.ReviewCollection](c.Request.Context(), h.Queries, reviewsapp.ListListingReviewsQuery{
		ListingID: c.Param("id"),
		Limit:     parsePositiveInt(c.Query("limit"), 20),
		Offset:    parsePositiveInt(c.Query("offset"), 0),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Recompute is the admin maintenance hook; the role check happens on the bus.
func (h ReviewsHandler) Recompute(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	summary, err := commands.Dispatch[reviewsapp.RecomputeRatingCommand, dto.RatingSummary](c.Request.Context(), h.Commands, reviewsapp.RecomputeRatingCommand{
		ListingID: c.Param("id"),
		Roles:     user.Roles,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

var _ ReviewsHTTP = ReviewsHandler{}
