// Package config loads the backend configuration from the environment.
//
// A local .env file is honored when present (development convenience);
// real deployments set the variables directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSupportedSymbols is the symbol set served when SUPPORTED_SYMBOLS
// is not configured.
var DefaultSupportedSymbols = []string{
	"BTC", "ETH", "ADA", "BNB", "XRP", "SOL", "DOT", "DOGE", "AVAX", "MATIC",
	"LINK", "UNI", "LTC", "ATOM", "XLM", "ALGO", "VET", "ICP", "FIL", "TRX",
}

// Config holds the full backend configuration.
type Config struct {
	// Server
	Port           string
	RequestTimeout time.Duration

	// Redis
	RedisURL string

	// Rate limiting
	RateLimitPerMinute int

	// Cache policy. FreshnessThreshold is the serving decision;
	// CacheTTL is the storage-layer expiry. Threshold must not exceed
	// the TTL or entries could be evicted before ever going stale.
	FreshnessThreshold time.Duration
	CacheTTL           time.Duration

	// Symbols
	SupportedSymbols []string

	// Upstream provider
	UpstreamBaseURL     string
	UpstreamAPIKey      string
	UpstreamMaxAttempts int
	UpstreamBackoffBase time.Duration
	UpstreamTimeout     time.Duration

	// Background refresh ("" disables the cron job)
	RefreshSchedule string

	// Logging
	LogLevel  string
	LogPretty bool
}

// Load reads configuration from the environment, applying defaults and
// validating the result.
func Load() (*Config, error) {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		RedisURL:            getEnv("REDIS_URL", "localhost:6379"),
		UpstreamBaseURL:     getEnv("UPSTREAM_BASE_URL", "https://api.coingecko.com/api/v3"),
		UpstreamAPIKey:      getEnv("UPSTREAM_API_KEY", ""),
		RefreshSchedule:     getEnv("REFRESH_SCHEDULE", "@every 5m"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogPretty:           getEnvBool("LOG_PRETTY", false),
		RateLimitPerMinute:  getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		UpstreamMaxAttempts: getEnvInt("UPSTREAM_MAX_ATTEMPTS", 3),
	}

	cfg.RequestTimeout = time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second
	cfg.FreshnessThreshold = time.Duration(getEnvInt("CACHE_FRESHNESS_THRESHOLD_SECONDS", 300)) * time.Second
	cfg.CacheTTL = time.Duration(getEnvInt("CACHE_TTL_SECONDS", 3600)) * time.Second
	cfg.UpstreamBackoffBase = time.Duration(getEnvInt("UPSTREAM_BACKOFF_BASE_MS", 200)) * time.Millisecond
	cfg.UpstreamTimeout = time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 5)) * time.Second

	cfg.SupportedSymbols = parseSymbols(getEnv("SUPPORTED_SYMBOLS", ""))
	if len(cfg.SupportedSymbols) == 0 {
		cfg.SupportedSymbols = DefaultSupportedSymbols
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate_limit_per_minute must be > 0 (got %d)", c.RateLimitPerMinute)
	}
	if c.FreshnessThreshold <= 0 {
		return fmt.Errorf("cache_freshness_threshold must be > 0 (got %v)", c.FreshnessThreshold)
	}
	if c.CacheTTL < c.FreshnessThreshold {
		return fmt.Errorf("cache_ttl (%v) must be >= freshness threshold (%v)", c.CacheTTL, c.FreshnessThreshold)
	}
	if c.UpstreamMaxAttempts <= 0 {
		return fmt.Errorf("upstream_max_attempts must be > 0 (got %d)", c.UpstreamMaxAttempts)
	}
	if c.UpstreamBackoffBase <= 0 {
		return fmt.Errorf("upstream_backoff_base must be > 0 (got %v)", c.UpstreamBackoffBase)
	}
	if c.UpstreamBaseURL == "" {
		return fmt.Errorf("upstream_base_url is required")
	}
	if len(c.SupportedSymbols) == 0 {
		return fmt.Errorf("supported_symbols must not be empty")
	}
	return nil
}

func parseSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.ToUpper(strings.TrimSpace(p))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}
