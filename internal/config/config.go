package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName          = "SecureVault"
	defaultAppEnv           = "development"
	defaultPort             = "4000"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultIdempotencyLease = 30 * time.Second
	defaultTransferTimeout  = 5 * time.Second
	defaultPublishTimeout   = 2 * time.Second
	defaultRateCacheTTL     = 5 * time.Minute
	defaultExchangeBaseURL  = "https://v6.exchangerate-api.com/v6/"
	defaultKafkaTopic       = "transfers.completed"
	defaultRegisterLimit    = 5
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName           string
	AppEnv            string
	Port              string
	LogLevel          string
	DatabaseURL       string
	RedisURL          string
	HMACSecret        string
	AutoMigrate       bool
	ShutdownPeriod    time.Duration
	IdempotencyTTL    time.Duration
	IdempotencyLease  time.Duration
	TransferTimeout   time.Duration
	PublishTimeout    time.Duration
	ExchangeAPIKey    string
	ExchangeBaseURL   string
	RateCacheTTL      time.Duration
	KafkaBrokers      []string
	KafkaTopic        string
	RegisterRateLimit int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", getEnv("SERVER_PORT", defaultPort)),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		HMACSecret:      os.Getenv("HMAC_SECRET"),
		AutoMigrate:     true,
		ExchangeAPIKey:  os.Getenv("EXCHANGE_API_KEY"),
		ExchangeBaseURL: getEnv("EXCHANGE_BASE_URL", defaultExchangeBaseURL),
		KafkaTopic:      getEnv("KAFKA_TOPIC", defaultKafkaTopic),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = databaseURLFromParts()
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}

	if v := os.Getenv("AUTO_MIGRATE"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AUTO_MIGRATE: %w", err)
		}
		cfg.AutoMigrate = enabled
	}

	limit, err := intEnv("REGISTER_RATE_LIMIT", defaultRegisterLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.RegisterRateLimit = limit

	durations := []struct {
		target   *time.Duration
		seconds  string
		duration string
		fallback time.Duration
	}{
		{&cfg.ShutdownPeriod, "SHUTDOWN_TIMEOUT_SECONDS", "SHUTDOWN_TIMEOUT", defaultShutdownDelay},
		{&cfg.IdempotencyTTL, "IDEMPOTENCY_TTL_SECONDS", "IDEMPOTENCY_TTL", defaultIdempotencyTTL},
		{&cfg.IdempotencyLease, "IDEMPOTENCY_LEASE_SECONDS", "IDEMPOTENCY_LEASE", defaultIdempotencyLease},
		{&cfg.TransferTimeout, "TRANSFER_TIMEOUT_SECONDS", "TRANSFER_TIMEOUT", defaultTransferTimeout},
		{&cfg.PublishTimeout, "PUBLISH_TIMEOUT_SECONDS", "PUBLISH_TIMEOUT", defaultPublishTimeout},
		{&cfg.RateCacheTTL, "RATE_CACHE_TTL_SECONDS", "RATE_CACHE_TTL", defaultRateCacheTTL},
	}
	for _, d := range durations {
		value, err := durationEnv(d.seconds, d.duration, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.target = value
	}

	// A claim that expires while its request is still running lets a retry
	// execute the same transfer again.
	if cfg.IdempotencyLease <= cfg.TransferTimeout+cfg.PublishTimeout {
		return Config{}, fmt.Errorf("IDEMPOTENCY_LEASE (%s) must exceed TRANSFER_TIMEOUT + PUBLISH_TIMEOUT (%s)",
			cfg.IdempotencyLease, cfg.TransferTimeout+cfg.PublishTimeout)
	}

	if cfg.HMACSecret == "" {
		return Config{}, fmt.Errorf("HMAC_SECRET must be set")
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local/development environment,
// where Postgres and Redis may be replaced by in-memory backends.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func databaseURLFromParts() string {
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%s", host, getEnv("DB_PORT", "5432")),
		Path:   "/" + os.Getenv("DB_DATABASE"),
	}
	if user := os.Getenv("DB_USER"); user != "" {
		u.User = url.UserPassword(user, os.Getenv("DB_PASSWORD"))
	}
	return u.String()
}

func durationEnv(secondsVar, durationVar string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsVar, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationVar, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
