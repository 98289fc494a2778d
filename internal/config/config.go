// Package config loads application configuration from the environment.
// Runtime concerns only; every strategy parameter lives in the config
// database and is versioned there.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir              string // Base directory for the SQLite databases
	BackupDir            string // Destination for tiered database backups
	Port                 int
	LogLevel             string
	LogPretty            bool
	DevMode              bool
	BenchmarkSymbol      string // Index proxy for market condition detection
	PriceSyncDays        int    // Trailing window refreshed by the daily price sync
	PriceBackfillYears   int    // History depth fetched on first sync
	TuningLookbackMonths int    // Analysis window for monthly tuning
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:              getEnv("DATA_DIR", "./data"),
		BackupDir:            getEnv("BACKUP_DIR", "./backups"),
		Port:                 getEnvAsInt("PORT", 8090),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogPretty:            getEnvAsBool("LOG_PRETTY", false),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		BenchmarkSymbol:      getEnv("BENCHMARK_SYMBOL", "SPY"),
		PriceSyncDays:        getEnvAsInt("PRICE_SYNC_DAYS", 30),
		PriceBackfillYears:   getEnvAsInt("PRICE_BACKFILL_YEARS", 10),
		TuningLookbackMonths: getEnvAsInt("TUNING_LOOKBACK_MONTHS", 3),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.BenchmarkSymbol == "" {
		return fmt.Errorf("benchmark symbol must not be empty")
	}

	if c.PriceSyncDays < 1 {
		return fmt.Errorf("price sync days must be at least 1, got %d", c.PriceSyncDays)
	}

	if c.PriceBackfillYears < 1 {
		return fmt.Errorf("price backfill years must be at least 1, got %d", c.PriceBackfillYears)
	}

	if c.TuningLookbackMonths < 1 {
		return fmt.Errorf("tuning lookback months must be at least 1, got %d", c.TuningLookbackMonths)
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
