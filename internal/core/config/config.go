package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultLockTimeout = 3 * time.Second
	defaultSessionTTL  = 24 * time.Hour
)

type Config struct {
	Port          string
	DatabaseURL   string
	WebhookURL    string
	WebhookSecret string
	Env           string
	LogLevel      string

	// LockTimeout bounds how long a unit of work may wait for account row
	// locks before failing with a retryable error.
	LockTimeout time.Duration

	// SessionTTL is how long a login token stays valid.
	SessionTTL time.Duration
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on system env variables")
	}

	return &Config{
		Port:          getEnv("PORT", "3000"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LockTimeout:   getDuration("LOCK_TIMEOUT", defaultLockTimeout),
		SessionTTL:    getDuration("SESSION_TTL", defaultSessionTTL),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Invalid duration in env, using default", "key", key, "value", value, "default", fallback)
		return fallback
	}
	return d
}
