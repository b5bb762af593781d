package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	listingsapp "rentals/internal/app/handlers/listings"
	"rentals/internal/app/middleware"
	appoutbox "rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainuser "rentals/internal/domain/user"
	"rentals/internal/infra/broker/kafka"
	"rentals/internal/infra/broker/rabbitmq"
	"rentals/internal/infra/cache/memcache"
	"rentals/internal/infra/config"
	mongostore "rentals/internal/infra/db/mongo"
	"rentals/internal/infra/db/postgres"
	"rentals/internal/infra/lock/inproc"
	redislock "rentals/internal/infra/lock/redis"
	"rentals/internal/infra/obs"
	infraoutbox "rentals/internal/infra/outbox"
	"rentals/internal/infra/storage/memory"
	"rentals/internal/infra/storage/s3"
)

// outboxStore is both halves of the outbox: handlers write, the worker drains.
type outboxStore interface {
	appoutbox.Outbox
	infraoutbox.Store
	Signal() infraoutbox.Signal
}

type infrastructure struct {
	factory     uow.UoWFactory
	users       domainuser.Repository
	outbox      outboxStore
	idempotency middleware.IdempotencyStore
	locker      middleware.Locker
	producer    infraoutbox.Producer
	photos      listingsapp.PhotoUploader
	checks      map[string]obs.Check

	mongo   *mongostore.Client
	closers []func(context.Context) error
}

func (i *infrastructure) Close(ctx context.Context) error {
	var errs []error
	for n := len(i.closers) - 1; n >= 0; n-- {
		errs = append(errs, i.closers[n](ctx))
	}
	return errors.Join(errs...)
}

func openInfrastructure(ctx context.Context, cfg config.Config, logger *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{checks: map[string]obs.Check{}}
	steps := []func(context.Context, config.Config, *slog.Logger) error{
		infra.openStorage,
		infra.openLocker,
		infra.openIdempotency,
		infra.openBroker,
		infra.openPhotos,
	}
	for _, step := range steps {
		if err := step(ctx, cfg, logger); err != nil {
			_ = infra.Close(context.Background())
			return nil, err
		}
	}
	return infra, nil
}

func (i *infrastructure) openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	switch cfg.StorageBackend {
	case config.BackendMongo:
		client, err := i.mongoClient(ctx, cfg)
		if err != nil {
			return err
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("mongo indexes: %w", err)
		}
		i.factory = mongostore.NewFactory(client)
		i.users = mongostore.NewUserRepository(client.DB)
		i.outbox = mongostore.NewOutboxStore(client.DB)
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.ConnectOptions{Logger: logger})
		if err != nil {
			return err
		}
		i.closers = append(i.closers, func(context.Context) error { return db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		i.factory = postgres.Factory{DB: db}
		i.users = postgres.NewUserRepository(db)
		i.outbox = postgres.NewOutboxStore(db)
		i.checks["postgres"] = db.PingContext
	default:
		store := memory.NewStore()
		i.factory = store
		i.users = memory.NewUserRepository()
		i.outbox = store.Outbox()
		i.checks["memory"] = store.Ping
	}
	logger.Info("storage ready", "backend", cfg.StorageBackend)
	return nil
}

func (i *infrastructure) openLocker(_ context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.LockBackend != config.BackendRedis {
		i.locker = inproc.New(cfg.LockWait)
		return nil
	}
	client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	i.closers = append(i.closers, func(context.Context) error { return client.Close() })
	i.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	locker := redislock.New(client, cfg.LockTTL, cfg.LockWait)
	locker.Logger = logger
	i.locker = locker
	logger.Info("redis lock configured", "addr", cfg.RedisAddr, "ttl", cfg.LockTTL)
	return nil
}

func (i *infrastructure) openIdempotency(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	local := memory.NewIdempotencyStore(cfg.IdempotencyCacheSize, cfg.IdempotencyTTL)
	i.closers = append(i.closers, func(context.Context) error { local.Stop(); return nil })
	switch cfg.IdempotencyBackend {
	case config.BackendMemcache:
		store := memcache.NewIdempotencyStore(cfg.MemcacheAddrs, local, cfg.IdempotencyTTL)
		store.Logger = logger
		i.idempotency = store
	case config.BackendMongo:
		client, err := i.mongoClient(ctx, cfg)
		if err != nil {
			return err
		}
		store, err := mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
		if err != nil {
			return err
		}
		i.idempotency = store
	default:
		i.idempotency = local
	}
	return nil
}

func (i *infrastructure) openBroker(_ context.Context, cfg config.Config, logger *slog.Logger) error {
	switch cfg.Broker {
	case config.BrokerKafka:
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig("rentals"), logger)
		if err != nil {
			return err
		}
		i.closers = append(i.closers, func(context.Context) error { return producer.Close() })
		i.producer = producer
	case config.BrokerRabbitMQ:
		publisher, err := rabbitmq.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange, logger)
		if err != nil {
			return err
		}
		i.closers = append(i.closers, func(context.Context) error { return publisher.Close() })
		i.producer = publisher
	default:
		i.producer = logPublisher{logger: logger}
	}
	logger.Info("event broker configured", "broker", cfg.Broker)
	return nil
}

func (i *infrastructure) openPhotos(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.S3Endpoint == "" {
		logger.Info("photo storage disabled", "reason", "S3_ENDPOINT not set")
		return nil
	}
	store, err := s3.New(s3.Config{
		Endpoint:       cfg.S3Endpoint,
		PublicEndpoint: cfg.S3PublicEndpoint,
		AccessKey:      cfg.S3AccessKey,
		SecretKey:      cfg.S3SecretKey,
		Bucket:         cfg.S3Bucket,
		UseSSL:         cfg.S3UseSSL,
		PublicRead:     true,
	}, logger)
	if err != nil {
		return err
	}
	i.photos = store
	i.checks["s3"] = store.Ping
	return nil
}

func (i *infrastructure) mongoClient(ctx context.Context, cfg config.Config) (*mongostore.Client, error) {
	if i.mongo != nil {
		return i.mongo, nil
	}
	client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, err
	}
	i.mongo = client
	i.closers = append(i.closers, client.Close)
	i.checks["mongo"] = client.Ping
	return client, nil
}

// logPublisher stands in for a broker when BROKER=none so the outbox still drains.
type logPublisher struct {
	logger *slog.Logger
}

func (p logPublisher) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.logger.Debug("event published", "topic", topic, "key", key, "id", headers["ce-id"], "bytes", len(payload))
	return nil
}
