// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"astrolive/pkg/db"
)

// Storage and presence backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	LogLevel   string

	StoreBackend string
	DB           db.Config
	DBMigrate    bool

	PresenceBackend string
	Redis           RedisConfig

	// NATSURL enables domain event publishing when non-empty.
	NATSURL string

	Billing     BillingConfig
	Negotiation NegotiationConfig
	Breaker     BreakerConfig
}

// RedisConfig holds the Redis connection settings used by the presence registry.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BillingConfig controls the metered billing loop.
type BillingConfig struct {
	Interval          time.Duration
	ProviderShare     decimal.Decimal
	OperatorAccountID string
	MoneyPlaces       int32
}

// NegotiationConfig controls consultation request handling.
type NegotiationConfig struct {
	// RequestTimeout auto-rejects pending requests after the given duration. Zero disables expiry.
	RequestTimeout time.Duration
}

// BreakerConfig controls the circuit breaker guarding ledger calls.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// LoadConfig loads configuration from environment variables (and a .env file if present).
// It returns an AppConfig instance or an error if any variable is invalid.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load()

	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	migrate, err := getEnvBool("DB_MIGRATE", true)
	if err != nil {
		return nil, err
	}
	interval, err := getEnvDuration("BILLING_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getEnvDuration("REQUEST_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	breakerTimeout, err := getEnvDuration("LEDGER_BREAKER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	breakerFailures, err := getEnvInt("LEDGER_BREAKER_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	places, err := getEnvInt("MONEY_PLACES", 2)
	if err != nil {
		return nil, err
	}
	share, err := decimal.NewFromString(getEnv("PROVIDER_SHARE", "0.60"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_SHARE: %w", err)
	}

	cfg := &AppConfig{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		StoreBackend: getEnv("STORE_BACKEND", BackendPostgres),
		DB: db.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "astrolive"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		DBMigrate:       migrate,
		PresenceBackend: getEnv("PRESENCE_BACKEND", BackendMemory),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		NATSURL: os.Getenv("NATS_URL"),
		Billing: BillingConfig{
			Interval:          interval,
			ProviderShare:     share,
			OperatorAccountID: getEnv("OPERATOR_ACCOUNT_ID", "operator"),
			MoneyPlaces:       int32(places),
		},
		Negotiation: NegotiationConfig{
			RequestTimeout: requestTimeout,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: uint32(breakerFailures),
			OpenTimeout:         breakerTimeout,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *AppConfig) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q, must be %q or %q", c.StoreBackend, BackendPostgres, BackendMemory)
	}
	switch c.PresenceBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("invalid PRESENCE_BACKEND %q, must be %q or %q", c.PresenceBackend, BackendMemory, BackendRedis)
	}
	if c.Billing.Interval <= 0 {
		return fmt.Errorf("BILLING_INTERVAL must be positive")
	}
	if !c.Billing.ProviderShare.IsPositive() || c.Billing.ProviderShare.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("PROVIDER_SHARE must be between 0 and 1 (exclusive), got %s", c.Billing.ProviderShare)
	}
	if c.Billing.OperatorAccountID == "" {
		return fmt.Errorf("OPERATOR_ACCOUNT_ID is required")
	}
	if c.Billing.MoneyPlaces < 0 {
		return fmt.Errorf("MONEY_PLACES must not be negative")
	}
	if c.Negotiation.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	if c.Breaker.ConsecutiveFailures == 0 {
		return fmt.Errorf("LEDGER_BREAKER_FAILURES must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
