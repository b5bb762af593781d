package main

import (
	"log/slog"
	"time"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	bookingapp "rentals/internal/app/handlers/booking"
	listingsapp "rentals/internal/app/handlers/listings"
	reviewsapp "rentals/internal/app/handlers/reviews"
	"rentals/internal/app/middleware"
	appoutbox "rentals/internal/app/outbox"
	"rentals/internal/app/queries"
	authsvc "rentals/internal/app/services/auth"
	"rentals/internal/infra/config"
	ginserver "rentals/internal/infra/http/gin"
	infraoutbox "rentals/internal/infra/outbox"
	"rentals/internal/infra/security"
)

type application struct {
	handlers ginserver.Handlers
	auth     *authsvc.Service
	commands commands.Bus
	queries  queries.Bus
	worker   *infraoutbox.Worker
}

func buildApplication(cfg config.Config, infra *infrastructure, logger *slog.Logger) (*application, error) {
	tokens, err := security.NewJWTIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, err
	}
	auth := &authsvc.Service{
		Users:     infra.users,
		Passwords: security.BcryptHasher{},
		Tokens:    tokens,
		Logger:    logger,
	}

	factory := infra.factory
	box := infra.outbox
	encoder := appoutbox.JSONEventEncoder{}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.CreateBookingCommand, dto.Booking](commandBus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		UoWFactory:       factory,
		Outbox:           box,
		Encoder:          encoder,
		AllowPastCheckIn: cfg.AllowPastCheckIn,
		Logger:           logger,
	})
	commands.RegisterHandler[bookingapp.UpdateBookingStatusCommand, dto.Booking](commandBus, bookingapp.UpdateBookingStatusCommand{}.Key(), &bookingapp.UpdateBookingStatusHandler{
		UoWFactory: factory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler[reviewsapp.CreateReviewCommand, reviewsapp.CreateReviewResult](commandBus, reviewsapp.CreateReviewCommand{}.Key(), &reviewsapp.CreateReviewHandler{
		UoWFactory: factory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler[reviewsapp.DeleteReviewCommand, reviewsapp.DeleteReviewResult](commandBus, reviewsapp.DeleteReviewCommand{}.Key(), &reviewsapp.DeleteReviewHandler{
		UoWFactory: factory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler[reviewsapp.RecomputeRatingCommand, dto.RatingSummary](commandBus, reviewsapp.RecomputeRatingCommand{}.Key(), &reviewsapp.RecomputeRatingHandler{
		UoWFactory: factory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler[listingsapp.CreateListingCommand, dto.Listing](commandBus, listingsapp.CreateListingCommand{}.Key(), &listingsapp.CreateListingHandler{
		UoWFactory:      factory,
		Outbox:          box,
		Encoder:         encoder,
		DefaultCurrency: cfg.Currency,
		Logger:          logger,
	})
	commands.RegisterHandler[listingsapp.SetListingActiveCommand, dto.Listing](commandBus, listingsapp.SetListingActiveCommand{}.Key(), &listingsapp.SetListingActiveHandler{
		UoWFactory: factory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler[listingsapp.UploadListingPhotoCommand, dto.Listing](commandBus, listingsapp.UploadListingPhotoCommand{}.Key(), &listingsapp.UploadListingPhotoHandler{
		UoWFactory: factory,
		Uploader:   infra.photos,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](queryBus, bookingapp.ListGuestBookingsQuery{}.Key(), &bookingapp.ListGuestBookingsHandler{UoWFactory: factory, Logger: logger})
	queries.RegisterHandler[bookingapp.ListHostBookingsQuery, dto.BookingCollection](queryBus, bookingapp.ListHostBookingsQuery{}.Key(), &bookingapp.ListHostBookingsHandler{UoWFactory: factory, Logger: logger})
	queries.RegisterHandler[bookingapp.CheckAvailabilityQuery, dto.Availability](queryBus, bookingapp.CheckAvailabilityQuery{}.Key(), &bookingapp.CheckAvailabilityHandler{UoWFactory: factory, Logger: logger})
	queries.RegisterHandler[reviewsapp.ListListingReviewsQuery, dto.ReviewCollection](queryBus, reviewsapp.ListListingReviewsQuery{}.Key(), &reviewsapp.ListListingReviewsHandler{UoWFactory: factory, Logger: logger})
	queries.RegisterHandler[listingsapp.GetListingQuery, dto.Listing](queryBus, listingsapp.GetListingQuery{}.Key(), &listingsapp.GetListingHandler{UoWFactory: factory, Logger: logger})
	queries.RegisterHandler[listingsapp.ListHostListingsQuery, []dto.Listing](queryBus, listingsapp.ListHostListingsQuery{}.Key(), &listingsapp.ListHostListingsHandler{UoWFactory: factory, Logger: logger})

	if logger != nil {
		logger.Debug("buses ready", "commands", commandBus.Keys(), "queries", queryBus.Keys())
	}

	// Serialize stays outermost: a replayed key waits until the original request has stored its result.
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Serialize(infra.locker, reviewsapp.ReviewScope(factory)),
		middleware.Idempotency(infra.idempotency, nil),
		middleware.Authorization(middleware.RoleAuthorizer{}),
		middleware.Validation(middleware.SelfValidator{}),
		middleware.OutboxFlush(box, logger),
		middleware.Transaction(factory, nil),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryAuthorization(middleware.RoleAuthorizer{}),
		middleware.QueryValidation(middleware.SelfValidator{}),
	)

	worker := &infraoutbox.Worker{
		Store:       box,
		Producer:    infra.producer,
		Wake:        box.Signal(),
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Source:      "app://rentals",
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}

	return &application{
		handlers: ginserver.Handlers{
			Auth:    ginserver.AuthHandler{Service: auth, Logger: logger},
			Listing: ginserver.ListingHandler{Commands: commandBusWithMiddleware, Queries: queryBusWithMiddleware, Logger: logger},
			Booking: ginserver.BookingHandler{Commands: commandBusWithMiddleware, Queries: queryBusWithMiddleware, Logger: logger},
			Reviews: ginserver.ReviewsHandler{Commands: commandBusWithMiddleware, Queries: queryBusWithMiddleware, Logger: logger},
			AuthMiddleware: ginserver.AuthMiddleware{
				Service: auth,
				Logger:  logger,
			}.Handle,
		},
		auth:     auth,
		commands: commandBusWithMiddleware,
		queries:  queryBusWithMiddleware,
		worker:   worker,
	}, nil
}

const shutdownTimeout = 5 * time.Second
