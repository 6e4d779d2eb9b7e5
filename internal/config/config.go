// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// defaultPalette is the fixed cyclic palette used for allocation slices.
// Slice colors are assigned by rank modulo the palette size.
var defaultPalette = []string{
	"#4E79A7", "#F28E2B", "#E15759", "#76B7B2",
	"#59A14F", "#EDC948", "#B07AA1", "#FF9DA7",
}

// Sources holds the base URLs of the external collaborators. They are
// passed into the pipeline at construction, never read from ambient
// globals.
type Sources struct {
	PositionSourceURL string
	QuoteSourceURL    string
	HistorySourceURL  string
	RiskServiceURL    string
}

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the cache database (always absolute)
	Port     int
	DevMode  bool
	LogLevel string

	Sources Sources

	// BenchmarkSymbol is the index used for beta computation.
	BenchmarkSymbol string
	// HistoryRange is the range parameter passed to the history source.
	HistoryRange string

	// LookupConcurrency bounds the enrichment fan-out.
	LookupConcurrency int
	// HTTPTimeout is applied to every outbound call; expiry is treated as
	// the same failure class as a connection error.
	HTTPTimeout time.Duration
	// QuoteCacheTTL bounds how long a cached quote may serve a lookup.
	QuoteCacheTTL time.Duration

	// RefreshCron is the background refresh schedule for the default
	// watchlist. Empty disables the scheduler.
	RefreshCron string
	// DefaultWatchlistID is the watchlist refreshed by the scheduler.
	DefaultWatchlistID string

	// AllocationPalette is the cyclic color palette for allocation slices.
	AllocationPalette []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FINPORT_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Sources: Sources{
			PositionSourceURL: getEnv("POSITION_SOURCE_URL", "http://localhost:3000"),
			QuoteSourceURL:    getEnv("QUOTE_SOURCE_URL", "https://financialmodelingprep.com/api/v3"),
			HistorySourceURL:  getEnv("HISTORY_SOURCE_URL", "https://financialmodelingprep.com/api/v3"),
			RiskServiceURL:    getEnv("RISK_SERVICE_URL", "http://localhost:5000"),
		},
		BenchmarkSymbol:    getEnv("BENCHMARK_SYMBOL", "SPY"),
		HistoryRange:       getEnv("HISTORY_RANGE", "1y"),
		LookupConcurrency:  getEnvAsInt("LOOKUP_CONCURRENCY", 8),
		HTTPTimeout:        getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),
		QuoteCacheTTL:      getEnvAsDuration("QUOTE_CACHE_TTL", 5*time.Minute),
		RefreshCron:        getEnv("REFRESH_CRON", "@every 5m"),
		DefaultWatchlistID: getEnv("DEFAULT_WATCHLIST_ID", ""),
		AllocationPalette:  getEnvAsList("ALLOCATION_PALETTE", defaultPalette),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Sources.PositionSourceURL == "" {
		return fmt.Errorf("position source URL is required")
	}
	if c.Sources.QuoteSourceURL == "" {
		return fmt.Errorf("quote source URL is required")
	}
	if c.Sources.HistorySourceURL == "" {
		return fmt.Errorf("history source URL is required")
	}
	if c.LookupConcurrency < 1 {
		return fmt.Errorf("lookup concurrency must be at least 1, got %d", c.LookupConcurrency)
	}
	if len(c.AllocationPalette) == 0 {
		return fmt.Errorf("allocation palette must not be empty")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
