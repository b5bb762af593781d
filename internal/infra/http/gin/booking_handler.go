package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	bookingapp "rentals/internal/app/handlers/booking"
	"rentals/internal/app/queries"
	domainuser "rentals/internal/domain/user"
)

const idempotencyHeader = "Idempotency-Key"

type BookingHTTP interface {
	Create(c *gin.Context)
	UpdateStatus(c *gin.Context)
	GuestList(c *gin.Context)
	HostList(c *gin.Context)
	Availability(c *gin.Context)
}

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	ListingID string `json:"listing_id"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Guests    int    `json:"guests"`
	Note      string `json:"note"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid booking payload")
		return
	}
	booking, err := commands.Dispatch[bookingapp.CreateBookingCommand, dto.Booking](c.Request.Context(), h.Commands, bookingapp.CreateBookingCommand{
		ListingID:       req.ListingID,
		GuestID:         user.ID,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Guests:          req.Guests,
		Note:            req.Note,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

func (h BookingHandler) UpdateStatus(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid status payload")
		return
	}
	booking, err := commands.Dispatch[bookingapp.UpdateBookingStatusCommand, dto.Booking](c.Request.Context(), h.Commands, bookingapp.UpdateBookingStatusCommand{
		BookingID:  c.Param("id"),
		ActorID:    user.ID,
		ActorRoles: user.Roles,
		Status:     req.Status,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h BookingHandler) GuestList(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	result, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, bookingapp.ListGuestBookingsQuery{
		GuestID: user.ID,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) HostList(c *gin.Context) {
	user, ok := requireRole(c, domainuser.RoleHost)
	if !ok {
		return
	}
	result, err := queries.Ask[bookingapp.ListHostBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, bookingapp.ListHostBookingsQuery{
		HostID: user.ID,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Availability answers GET /listings/:id/availability?check_in=...&check_out=...
func (h BookingHandler) Availability(c *gin.Context) {
	result, err := queries.Ask[bookingapp.CheckAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, bookingapp.CheckAvailabilityQuery{
		ListingID: c.Param("id"),
		CheckIn:   c.Query("check_in"),
		CheckOut:  c.Query("check_out"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
