// Package config loads service configuration from the environment, with a
// .env file picked up in development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultDeck mirrors the estimate scale the original deployment shipped
// with: minutes up to a working week.
const DefaultDeck = "30m, 1h, 2h, 4h, 1d, 2d, 3d, 1w"

type Config struct {
	Addr          string
	CodeLength    int
	Deck          string // default estimate spec for sessions created without one
	SessionTTL    time.Duration
	SweepInterval time.Duration
	DatabaseURL   string // empty disables the archive store
	PublicURL     string // empty means latch from the first request
}

func Load() Config {
	_ = godotenv.Load() // absent .env is fine

	return Config{
		Addr:          getEnv("ADDR", ":8080"),
		CodeLength:    getEnvInt("CODE_LENGTH", 6),
		Deck:          getEnv("DEFAULT_DECK", DefaultDeck),
		SessionTTL:    getEnvDuration("SESSION_TTL", 4*time.Hour),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		PublicURL:     os.Getenv("PUBLIC_URL"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
