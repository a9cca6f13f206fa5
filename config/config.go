package config

import (
	"os"
	"time"
)

// QuoteCacheTTL bounds how long quote responses may be served from cache.
var QuoteCacheTTL = 5 * time.Minute

// Config captures the environment-driven settings so main stays lean.
type Config struct {
	Addr        string
	DatabaseURL string
	JWTSecret   string

	// LedgerMode selects "memory" (in-process, dev) or "gateway".
	LedgerMode       string
	LedgerGatewayURL string
	LedgerTimeout    time.Duration

	ContentBackend  string
	ContentBoltDB   string
	ContentS3Bucket string
	ContentS3Prefix string

	// RedisURL enables the quote cache when set.
	RedisURL string
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:             envOr("SYNAPSE_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        envOr("JWT_SECRET", "dev-secret-change-in-production"),
		LedgerMode:       envOr("LEDGER_MODE", "memory"),
		LedgerGatewayURL: os.Getenv("LEDGER_GATEWAY_URL"),
		LedgerTimeout:    30 * time.Second,
		ContentBackend:   envOr("CONTENT_BACKEND", "memory"),
		ContentBoltDB:    envOr("CONTENT_BOLT_DB", "data/content.db"),
		ContentS3Bucket:  os.Getenv("CONTENT_S3_BUCKET"),
		ContentS3Prefix:  envOr("CONTENT_S3_PREFIX", "content"),
		RedisURL:         os.Getenv("REDIS_URL"),
	}

	if v := os.Getenv("LEDGER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LedgerTimeout = d
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
