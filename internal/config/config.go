// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Session store settings. Driver selects the backend; the URL
	// fields only matter for the backend selected.
	StoreDriver string // "postgres", "sqlite", or "memory"
	DatabaseURL string // PgBouncer or direct Postgres URL for queries.
	NotifyURL   string // Direct Postgres URL for LISTEN/NOTIFY.
	SQLitePath  string

	// Auth settings.
	APIKey        string // Operator key exchanged for a JWT at /auth/token.
	JWTSecret     string // HMAC secret; ephemeral when empty.
	JWTExpiration time.Duration

	// External data source settings.
	OpenAIAPIKey    string
	OpenAIModel     string
	EuropeanaAPIKey string
	ClientTimeout   time.Duration

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string

	// Operational settings.
	LogLevel            string
	RateLimitPerMinute  int
	MaxRequestBodyBytes int64 // Maximum request body size in bytes.
	DrainTimeout        time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("TENRAN_PORT", 8080),
		ReadTimeout:         envDuration("TENRAN_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("TENRAN_WRITE_TIMEOUT", 30*time.Second),
		StoreDriver:         envStr("TENRAN_STORE_DRIVER", "memory"),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		NotifyURL:           envStr("NOTIFY_URL", ""),
		SQLitePath:          envStr("TENRAN_SQLITE_PATH", "tenran.db"),
		APIKey:              envStr("TENRAN_API_KEY", ""),
		JWTSecret:           envStr("TENRAN_JWT_SECRET", ""),
		JWTExpiration:       envDuration("TENRAN_JWT_EXPIRATION", 24*time.Hour),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		OpenAIModel:         envStr("TENRAN_OPENAI_MODEL", ""),
		EuropeanaAPIKey:     envStr("EUROPEANA_API_KEY", ""),
		ClientTimeout:       envDuration("TENRAN_CLIENT_TIMEOUT", 30*time.Second),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "tenran"),
		LogLevel:            envStr("TENRAN_LOG_LEVEL", "info"),
		RateLimitPerMinute:  envInt("TENRAN_RATE_LIMIT_PER_MINUTE", 120),
		MaxRequestBodyBytes: int64(envInt("TENRAN_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
		DrainTimeout:        envDuration("TENRAN_DRAIN_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required with the postgres store")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("config: TENRAN_SQLITE_PATH is required with the sqlite store")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: TENRAN_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("config: TENRAN_RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
