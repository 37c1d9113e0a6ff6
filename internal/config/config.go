// Package config loads execution-core configuration from the
// environment, following the getEnv* helper pattern used throughout
// this codebase, with .env loading via godotenv for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Binance testnet constants (spec.md §6). Production credentials and
// base URLs are supplied entirely via environment variables; these
// constants exist only for the testnet integration surface.
const (
	TestnetRESTBaseURL = "https://testnet.binance.vision"
	TestnetWSBaseURL   = "wss://stream.testnet.binance.vision"
	MaxClockSkewMillis = 5000
)

// Config is the execution core's process-wide configuration, loaded
// once at startup.
type Config struct {
	Debug bool

	// Spine persistence
	DatabaseURL    string // Postgres DSN; empty selects the embedded SQLite fallback
	SQLitePath     string
	RequestTimeout time.Duration

	// Symbol-filter / account-registry cache (internal/cache)
	CacheDSN string

	// Binance Spot venue credentials and endpoints
	AccountID        string
	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceRESTBase  string
	BinanceWSBase    string
	BinanceTestnet   bool

	// Retry policy (spec.md §4.E, §8 scenario 5)
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	// Telegram outbox notifier (optional)
	TelegramToken  string
	TelegramChatID int64
}

// Load reads configuration from the environment, loading a .env file
// first if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load() // absence of a .env file is normal in deployed environments

	cfg := &Config{
		Debug:            getEnvBool("DEBUG", false),
		AccountID:        getEnv("ACCOUNT_ID", "default"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       getEnv("SQLITE_PATH", "data/events.db"),
		CacheDSN:         getEnv("CACHE_DSN", "data/cache.db"),
		RequestTimeout:   getEnvDuration("VENUE_REQUEST_TIMEOUT", 30*time.Second),
		BinanceAPIKey:    os.Getenv("BINANCE_TESTNET_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_TESTNET_API_SECRET"),
		BinanceTestnet:   getEnvBool("BINANCE_TESTNET", true),
		RetryMaxAttempts: getEnvInt("VENUE_RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getEnvDuration("VENUE_RETRY_BASE_DELAY", 500*time.Millisecond),
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if cfg.BinanceTestnet {
		cfg.BinanceRESTBase = getEnv("BINANCE_REST_BASE_URL", TestnetRESTBaseURL)
		cfg.BinanceWSBase = getEnv("BINANCE_WS_BASE_URL", TestnetWSBaseURL)
	} else {
		cfg.BinanceRESTBase = getEnv("BINANCE_REST_BASE_URL", "https://api.binance.com")
		cfg.BinanceWSBase = getEnv("BINANCE_WS_BASE_URL", "wss://stream.binance.com:9443")
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.BinanceAPIKey == "" || cfg.BinanceAPISecret == "" {
		return nil, fmt.Errorf("BINANCE_TESTNET_API_KEY and BINANCE_TESTNET_API_SECRET are required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
