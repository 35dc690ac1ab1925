// Package config loads runtime configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs at startup.
type Config struct {
	Port           string
	DatabaseURL    string // empty → in-memory store
	RedisURL       string // empty → no cache layer
	UpstreamAPIURL string // public exchange REST base
	JWTSecret      string
	LogLevel       string
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnvDefault("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		UpstreamAPIURL: getEnvDefault("UPSTREAM_API_URL", "https://api.backpack.exchange/api/v1"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		LogLevel:       getEnvDefault("LOG_LEVEL", "info"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
