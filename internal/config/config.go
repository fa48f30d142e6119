// Package config loads client configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration.
type Config struct {
	APIBaseURL    string
	HTTPTimeout   time.Duration
	DBPath        string // empty means the default XDG path
	LogLevel      string
	LogFormat     string
	DrainInterval time.Duration // how often the client retries queued submissions
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		APIBaseURL:    getEnv("PREPDECK_API_URL", "http://localhost:8080"),
		HTTPTimeout:   time.Duration(getEnvInt("PREPDECK_HTTP_TIMEOUT_SEC", 10)) * time.Second,
		DBPath:        getEnv("PREPDECK_DB", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "pretty"),
		DrainInterval: time.Duration(getEnvInt("PREPDECK_DRAIN_INTERVAL_SEC", 30)) * time.Second,
	}
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
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
