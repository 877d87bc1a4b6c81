package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the backtester process.
type Config struct {
	// Database
	DBPath         string
	PersistResults bool

	// Logging
	LogLevel  string
	LogFormat string // "json" (default) or "console"

	// Run configuration file (YAML)
	BacktestConfig string

	// Candle files
	DataDir string

	// Prometheus text-file export, empty disables it
	MetricsTextfile string

	// Parallel sweep width
	SweepWorkers int
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the tool still runs when .env is missing.
	_ = godotenv.Load()

	// Database path: prefer DB_PATH, then DATABASE_PATH for backward compatibility.
	dbPath := getEnv("DB_PATH", "")
	if dbPath == "" {
		dbPath = getEnv("DATABASE_PATH", "./data/backtests.db")
	}

	return &Config{
		DBPath:          dbPath,
		PersistResults:  getEnv("PERSIST_RESULTS", "true") == "true",
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "json")),
		BacktestConfig:  getEnv("BACKTEST_CONFIG", ""),
		DataDir:         getEnv("DATA_DIR", "./data"),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
		SweepWorkers:    getEnvInt("SWEEP_WORKERS", 4),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
