package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentals/internal/infra/config"
	"rentals/internal/infra/obs"
)

type Handlers struct {
	Auth           AuthHTTP
	Listing        ListingHTTP
	Booking        BookingHTTP
	Reviews        ReviewsHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.GET("/auth/me", h.Auth.Me)
	}
	if h.Listing != nil {
		api.POST("/listings", h.Listing.Create)
		api.GET("/listings/:id", h.Listing.Get)
		api.POST("/listings/:id/activate", h.Listing.Activate)
		api.POST("/listings/:id/deactivate", h.Listing.Deactivate)
		api.POST("/listings/:id/photos", h.Listing.UploadPhoto)
		api.GET("/host/listings", h.Listing.HostList)
	}
	if h.Booking != nil {
		api.POST("/bookings", h.Booking.Create)
		api.POST("/bookings/:id/status", h.Booking.UpdateStatus)
		api.GET("/me/bookings", h.Booking.GuestList)
		api.GET("/host/bookings", h.Booking.HostList)
		api.GET("/listings/:id/availability", h.Booking.Availability)
	}
	if h.Reviews != nil {
		api.POST("/listings/:id/reviews", h.Reviews.Create)
		api.GET("/listings/:id/reviews", h.Reviews.List)
		api.DELETE("/reviews/:id", h.Reviews.Delete)
		api.POST("/admin/listings/:id/rating/recompute", h.Reviews.Recompute)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", idempotencyHeader, obs.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Type", obs.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
