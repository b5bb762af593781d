package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemcache = "memcache"

	BrokerNone     = "none"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

const devJWTSecret = "dev-only-insecure-secret"

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	StorageBackend string
	MongoURI       string
	MongoDB        string
	PostgresDSN    string

	LockBackend string
	RedisAddr   string
	LockTTL     time.Duration
	LockWait    time.Duration

	IdempotencyBackend   string
	IdempotencyTTL       time.Duration
	IdempotencyCacheSize int64
	MemcacheAddrs        []string

	Broker             string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	RabbitMQURL        string
	RabbitMQExchange   string
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	S3Endpoint       string
	S3PublicEndpoint string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string
	S3UseSSL         bool

	JWTSecret string
	JWTTTL    time.Duration

	Currency         string
	AllowPastCheckIn bool
	ListingsFixtures string
	CORSOrigins      []string

	AdminEmail    string
	AdminName     string
	AdminPassword string
}

// Default is the all-in-memory configuration main falls back to.
func Default() Config {
	return Config{
		Env:                  "dev",
		LogLevel:             "info",
		HTTPAddr:             ":8080",
		StorageBackend:       BackendMemory,
		MongoDB:              "rentals",
		LockBackend:          BackendMemory,
		LockTTL:              10 * time.Second,
		LockWait:             3 * time.Second,
		IdempotencyBackend:   BackendMemory,
		IdempotencyTTL:       24 * time.Hour,
		IdempotencyCacheSize: 10000,
		Broker:               BrokerNone,
		RabbitMQExchange:     "rentals.events",
		OutboxPollInterval:   500 * time.Millisecond,
		RetryBackoff:         []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
		S3Bucket:             "rentals-photos",
		JWTSecret:            devJWTSecret,
		JWTTTL:               24 * time.Hour,
		Currency:             "USD",
		CORSOrigins:          []string{"*"},
		AdminEmail:           "admin@rentals.local",
		AdminName:            "Administrator",
	}
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	def := Default()
	cfg := Config{
		Env:                strings.ToLower(getEnv("APP_ENV", def.Env)),
		LogLevel:           getEnv("LOG_LEVEL", def.LogLevel),
		HTTPAddr:           getEnv("HTTP_ADDR", def.HTTPAddr),
		StorageBackend:     strings.ToLower(getEnv("STORAGE_BACKEND", def.StorageBackend)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", def.MongoDB),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		LockBackend:        strings.ToLower(getEnv("LOCK_BACKEND", def.LockBackend)),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		IdempotencyBackend: strings.ToLower(getEnv("IDEMP_BACKEND", def.IdempotencyBackend)),
		MemcacheAddrs:      splitList(os.Getenv("MEMCACHE_ADDRS")),
		Broker:             strings.ToLower(getEnv("BROKER", def.Broker)),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		RabbitMQExchange:   getEnv("RABBITMQ_EXCHANGE", def.RabbitMQExchange),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		S3PublicEndpoint:   getEnv("S3_PUBLIC_ENDPOINT", ""),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:           getEnv("S3_BUCKET", def.S3Bucket),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		Currency:           strings.ToUpper(getEnv("CURRENCY", def.Currency)),
		ListingsFixtures:   os.Getenv("LISTINGS_FIXTURES"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
		AdminEmail:         getEnv("ADMIN_EMAIL", def.AdminEmail),
		AdminName:          getEnv("ADMIN_NAME", def.AdminName),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
	}

	var err error
	if cfg.LockTTL, err = parseDurationEnv("LOCK_TTL", def.LockTTL); err != nil {
		return Config{}, err
	}
	if cfg.LockWait, err = parseDurationEnv("LOCK_WAIT", def.LockWait); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", def.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyCacheSize, err = parseIntEnv("IDEMP_CACHE_SIZE", def.IdempotencyCacheSize); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", def.OutboxPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", def.JWTTTL); err != nil {
		return Config{}, err
	}
	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}
	if cfg.AllowPastCheckIn, err = parseBoolEnv("BOOKING_ALLOW_PAST_CHECKIN", false); err != nil {
		return Config{}, err
	}
	if cfg.RetryBackoff, err = parseDurationList("RETRY_BACKOFF", def.RetryBackoff); err != nil {
		return Config{}, err
	}
	if cfg.S3PublicEndpoint == "" {
		cfg.S3PublicEndpoint = cfg.S3Endpoint
	}
	if cfg.JWTSecret == "" && cfg.IsDev() {
		cfg.JWTSecret = devJWTSecret
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDev reports whether the environment tolerates development defaults.
func (c Config) IsDev() bool {
	switch c.Env {
	case "dev", "local", "test":
		return true
	}
	return false
}

// Validate checks backend selections and that each selected backend has its connection settings.
func (c Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORAGE_BACKEND=%s", c.StorageBackend)
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORAGE_BACKEND=%s", c.StorageBackend)
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.LockBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when LOCK_BACKEND=redis")
		}
	default:
		return fmt.Errorf("invalid LOCK_BACKEND %q", c.LockBackend)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.LockWait < 0 {
		return fmt.Errorf("LOCK_WAIT must not be negative")
	}

	switch c.IdempotencyBackend {
	case BackendMemory:
	case BackendMemcache:
		if len(c.MemcacheAddrs) == 0 {
			return fmt.Errorf("MEMCACHE_ADDRS is required when IDEMP_BACKEND=memcache")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when IDEMP_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("invalid IDEMP_BACKEND %q", c.IdempotencyBackend)
	}

	switch c.Broker {
	case BrokerNone:
	case BrokerKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when BROKER=kafka")
		}
	case BrokerRabbitMQ:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when BROKER=rabbitmq")
		}
	default:
		return fmt.Errorf("invalid BROKER %q", c.Broker)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when APP_ENV=%s", c.Env)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("invalid CURRENCY %q: want a 3-letter code", c.Currency)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseDurationList(key string, def []time.Duration) ([]time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	var out []time.Duration
	for _, part := range splitList(raw) {
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("invalid %s component %q: %w", key, part, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseIntEnv(key string, def int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
