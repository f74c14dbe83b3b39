// ==============================================================================
// CONFIG PACKAGE - pkg/config/config.go
// ==============================================================================
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Settlement SettlementConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	BodyLimit    int64
	// RateLimitRequests per client IP and RateLimitWindow; 0 disables.
	RateLimitRequests int
	RateLimitWindow   time.Duration
	IdempotencyTTL    time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	Enabled  bool
}

// SettlementConfig tunes the settlement engine.
type SettlementConfig struct {
	// MinorUnitDigits is the number of decimal places folded into integer
	// minor units (2 turns 12.34 into 1234).
	MinorUnitDigits int32
	// SubsetMaxGroup caps the opposite-sign group size the subset search
	// will explore. Larger groups are skipped.
	SubsetMaxGroup int
	// SubsetStepBudget bounds the number of search steps per match attempt.
	SubsetStepBudget int
	Parallel         bool
	CacheTTL         time.Duration
	MaxEntries       int
	// Retention is how long settlement runs are kept; 0 keeps them forever.
	Retention     time.Duration
	SweepInterval time.Duration
}

type LogConfig struct {
	Level string
}

// Load reads configuration from the environment, after merging an optional
// .env file in the working directory.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			BodyLimit:    int64(getIntEnv("SERVER_BODY_LIMIT", 1<<20)),

			RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
			RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
			IdempotencyTTL:    getDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
		},
		Settlement: SettlementConfig{
			MinorUnitDigits:  int32(getIntEnv("SETTLEMENT_MINOR_UNIT_DIGITS", 2)),
			SubsetMaxGroup:   getIntEnv("SETTLEMENT_SUBSET_MAX_GROUP", 24),
			SubsetStepBudget: getIntEnv("SETTLEMENT_SUBSET_STEP_BUDGET", 1_000_000),
			Parallel:         getBoolEnv("SETTLEMENT_PARALLEL", true),
			CacheTTL:         getDurationEnv("SETTLEMENT_CACHE_TTL", 10*time.Minute),
			MaxEntries:       getIntEnv("SETTLEMENT_MAX_ENTRIES", 10000),
			Retention:        getDurationEnv("SETTLEMENT_RETENTION", 0),
			SweepInterval:    getDurationEnv("SETTLEMENT_SWEEP_INTERVAL", time.Hour),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}
