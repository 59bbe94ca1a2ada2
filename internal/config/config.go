// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server needs to run.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string
	// DatabaseDSN enables the PostgreSQL store when set; empty keeps the
	// in-memory store.
	DatabaseDSN string
	// AdminAddress receives the manager role and is the default treasury.
	AdminAddress string
	// TreasuryAddress overrides the settlement treasury recipient.
	TreasuryAddress string
	// TreasuryFeePercent overrides the treasury cut. Zero keeps the default.
	TreasuryFeePercent uint64
	// AuthTokens are the accepted bearer tokens for mutating requests.
	// Empty disables the token check.
	AuthTokens []string
	// RateLimit is mutating requests per second. Zero disables throttling.
	RateLimit float64
	// RateBurst is the throttle burst size.
	RateBurst int
	// EntropyInterval is how often the oracle gets fresh entropy.
	EntropyInterval time.Duration
	// LogLevel is the zerolog level name.
	LogLevel string
}

// Load reads configuration from GAMEMASTER_* environment variables,
// applying defaults for anything unset.
func Load() (Config, error) {
	cfg := Config{
		Addr:            envOr("GAMEMASTER_ADDR", ":8080"),
		DatabaseDSN:     os.Getenv("GAMEMASTER_DATABASE_DSN"),
		AdminAddress:    os.Getenv("GAMEMASTER_ADMIN_ADDRESS"),
		TreasuryAddress: os.Getenv("GAMEMASTER_TREASURY_ADDRESS"),
		RateBurst:       20,
		EntropyInterval: time.Minute,
		LogLevel:        envOr("GAMEMASTER_LOG_LEVEL", "info"),
	}

	if raw := os.Getenv("GAMEMASTER_TREASURY_FEE_PERCENT"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || v > 100 {
			return Config{}, fmt.Errorf("GAMEMASTER_TREASURY_FEE_PERCENT %q: must be 0-100", raw)
		}
		cfg.TreasuryFeePercent = v
	}
	if raw := os.Getenv("GAMEMASTER_AUTH_TOKENS"); raw != "" {
		for _, token := range strings.Split(raw, ",") {
			if token = strings.TrimSpace(token); token != "" {
				cfg.AuthTokens = append(cfg.AuthTokens, token)
			}
		}
	}
	if raw := os.Getenv("GAMEMASTER_RATE_LIMIT"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return Config{}, fmt.Errorf("GAMEMASTER_RATE_LIMIT %q: must be a non-negative number", raw)
		}
		cfg.RateLimit = v
	}
	if raw := os.Getenv("GAMEMASTER_RATE_BURST"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return Config{}, fmt.Errorf("GAMEMASTER_RATE_BURST %q: must be a positive integer", raw)
		}
		cfg.RateBurst = v
	}
	if raw := os.Getenv("GAMEMASTER_ENTROPY_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("GAMEMASTER_ENTROPY_INTERVAL %q: must be a positive duration", raw)
		}
		cfg.EntropyInterval = d
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
