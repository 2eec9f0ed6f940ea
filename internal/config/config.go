// Package config loads service configuration from environment variables,
// with optional .env support for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full service configuration.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	LogLevel string

	JWTSecret string

	// BranchAccessRule is the CEL expression for branch permissions.
	// Empty means the built-in default rule.
	BranchAccessRule string

	// LedgerOwnsBalance routes balance writes through the ledger recompute
	// path instead of the quantity store. Exactly one writer per call.
	LedgerOwnsBalance bool

	IdempotencyEnabled bool
	IdempotencyTTL     time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	ActivityCacheTTL time.Duration

	// ReconcileInterval is how often the worker checks ledger/balance drift.
	ReconcileInterval time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present (never required).
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("APP_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),

		BranchAccessRule: getEnv("BRANCH_ACCESS_RULE", ""),

		LedgerOwnsBalance: getEnvBool("LEDGER_OWNS_BALANCE", false),

		IdempotencyEnabled: getEnvBool("IDEMPOTENCY_ENABLED", false),
		IdempotencyTTL:     getEnvDuration("IDEMPOTENCY_TTL", 10*time.Minute),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		ActivityCacheTTL: getEnvDuration("ACTIVITY_CACHE_TTL", 30*time.Second),

		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 10*time.Minute),
	}
}

// IsDevelopment reports whether the service runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
