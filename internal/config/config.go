package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the API server configuration, read from the environment.
type Config struct {
	Addr string
	// DatabaseURL selects Postgres; empty runs on the in-memory store.
	DatabaseURL string
	JWTSecret   string
	AccessTTL   time.Duration
	CORSOrigin  string
}

func Load() Config {
	return Config{
		Addr:        getenv("API_ADDR", ":8787"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		JWTSecret:   getenv("PROPOSALDESK_JWT_SECRET", "proposaldesk-dev-secret"),
		AccessTTL:   time.Duration(getenvInt("PROPOSALDESK_ACCESS_TTL_SECONDS", 43200)) * time.Second,
		CORSOrigin:  getenv("PROPOSALDESK_CORS_ORIGIN", "*"),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
