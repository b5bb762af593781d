package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	listingsapp "rentals/internal/app/handlers/listings"
	"rentals/internal/app/queries"
	domainuser "rentals/internal/domain/user"
)

const maxPhotoBytes = 10 << 20

type ListingHTTP interface {
	Get(c *gin.Context)
	Create(c *gin.Context)
	HostList(c *gin.Context)
	Activate(c *gin.Context)
	Deactivate(c *gin.Context)
	UploadPhoto(c *gin.Context)
}

type ListingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	City        string   `json:"city"`
	Country     string   `json:"country"`
	NightlyRate string   `json:"nightly_rate"`
	Currency    string   `json:"currency"`
	MaxGuests   int      `json:"max_guests"`
	Amenities   []string `json:"amenities"`
	Photos      []string `json:"photos"`
	Active      bool     `json:"active"`
}

func (h ListingHandler) Get(c *gin.Context) {
	listing, err := queries.Ask[listingsapp.GetListingQuery, dto.Listing](c.Request.Context(), h.Queries, listingsapp.GetListingQuery{
		ListingID: c.Param("id"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h ListingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, domainuser.RoleHost)
	if !ok {
		return
	}
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid listing payload")
		return
	}
	listing, err := commands.Dispatch[listingsapp.CreateListingCommand, dto.Listing](c.Request.Context(), h.Commands, listingsapp.CreateListingCommand{
		HostID:      user.ID,
		Roles:       user.Roles,
		Title:       req.Title,
		Description: req.Description,
		City:        req.City,
		Country:     req.Country,
		NightlyRate: req.NightlyRate,
		Currency:    req.Currency,
		MaxGuests:   req.MaxGuests,
		Amenities:   req.Amenities,
		Photos:      req.Photos,
		Active:      req.Active,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

func (h ListingHandler) HostList(c *gin.Context) {
	user, ok := requireRole(c, domainuser.RoleHost)
	if !ok {
		return
	}
	items, err := queries.Ask[listingsapp.ListHostListingsQuery, []dto.Listing](c.Request.Context(), h.Queries, listingsapp.ListHostListingsQuery{
		HostID: user.ID,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if items == nil {
		items = []dto.Listing{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h ListingHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h ListingHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h ListingHandler) setActive(c *gin.Context, active bool) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	listing, err := commands.Dispatch[listingsapp.SetListingActiveCommand, dto.Listing](c.Request.Context(), h.Commands, listingsapp.SetListingActiveCommand{
		ListingID: c.Param("id"),
		ActorID:   user.ID,
		Roles:     user.Roles,
		Active:    active,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// UploadPhoto accepts a multipart "file" field and appends its public URL to the listing.
func (h ListingHandler) UploadPhoto(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoBytes)
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, "cannot read uploaded file")
		return
	}
	defer file.Close()

	listing, err := commands.Dispatch[listingsapp.UploadListingPhotoCommand, dto.Listing](c.Request.Context(), h.Commands, listingsapp.UploadListingPhotoCommand{
		ListingID:   c.Param("id"),
		ActorID:     user.ID,
		Roles:       user.Roles,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

var _ ListingHTTP = ListingHandler{}
