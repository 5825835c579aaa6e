package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"hedgegraph/internal/adapters/logger" // Import the logger package for LogLevel
	"hedgegraph/internal/domain"
)

const (
	MarketSpot    = "spot"
	MarketFutures = "futures"

	SourceBinance = "binance"
	SourceArchive = "archive"

	// MaxPageSize is the largest row limit accepted by any supported klines endpoint.
	MaxPageSize = 1500
)

// Config holds all application configuration.
type Config struct {
	// Binance API (klines are public, keys are optional)
	APIKey    string
	SecretKey string
	IsTestnet bool
	Market    string // spot or futures

	// Where page requests go: the exchange or the local archive
	Source string

	// Session Parameters
	Symbol          string          // Symbol selected at start-up, may be empty
	PageSize        int             // Max klines per request
	DefaultInterval domain.Interval // Interval used when a symbol is selected
	DefaultLookback time.Duration   // Window length used when a symbol is selected

	// Export
	ExportDir     string
	ArchiveDBPath string // Empty disables the SQLite archive

	// Logging
	LogLevel  logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFormat string          // console or json
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	cfg.Market = strings.ToLower(getEnv("MARKET", MarketSpot))
	if cfg.Market != MarketSpot && cfg.Market != MarketFutures {
		errs = append(errs, fmt.Sprintf("MARKET must be %q or %q", MarketSpot, MarketFutures))
	}

	cfg.Source = strings.ToLower(getEnv("SOURCE", SourceBinance))
	if cfg.Source != SourceBinance && cfg.Source != SourceArchive {
		errs = append(errs, fmt.Sprintf("SOURCE must be %q or %q", SourceBinance, SourceArchive))
	}

	// Session Parameters
	cfg.Symbol = strings.ToUpper(getEnv("SYMBOL", ""))

	cfg.PageSize, err = getEnvAsIntRequired("PAGE_SIZE", 1000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PAGE_SIZE: %v", err))
	} else if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		errs = append(errs, fmt.Sprintf("PAGE_SIZE must be between 1 and %d", MaxPageSize))
	}

	cfg.DefaultInterval, err = domain.ParseInterval(getEnv("DEFAULT_INTERVAL", string(domain.Interval1m)))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_INTERVAL: %v", err))
	}

	lookbackHours, err := getEnvAsIntRequired("DEFAULT_LOOKBACK_HOURS", 24)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_LOOKBACK_HOURS: %v", err))
	} else if lookbackHours <= 0 {
		errs = append(errs, "DEFAULT_LOOKBACK_HOURS must be positive")
	}
	cfg.DefaultLookback = time.Duration(lookbackHours) * time.Hour

	// Export
	cfg.ExportDir = getEnv("EXPORT_DIR", "./data/exports")
	cfg.ArchiveDBPath = getEnv("ARCHIVE_DB_PATH", "./data/klines.db")
	if cfg.Source == SourceArchive && cfg.ArchiveDBPath == "" {
		errs = append(errs, "ARCHIVE_DB_PATH must be set when SOURCE=archive")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", logger.FormatConsole))
	if cfg.LogFormat != logger.FormatConsole && cfg.LogFormat != logger.FormatJSON {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be %q or %q", logger.FormatConsole, logger.FormatJSON))
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
