package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Backtest BacktestConfig
	Cache    CacheConfig
	Refresh  RefreshConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string
	Host           string
	Addr           string // Combined host:port for convenience
	RequestTimeout time.Duration
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// BacktestConfig holds the defaults applied to backtest requests.
type BacktestConfig struct {
	DefaultCurrency     string
	RiskFreeRate        float64
	InflationRate       float64
	MaxHorizonYears     int
	MonteCarloPaths     int
	MaxMonteCarloPaths  int
	DefaultForecastYear int
}

// CacheConfig bounds the in-memory result cache.
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// RefreshConfig controls the scheduled market data refresh.
type RefreshConfig struct {
	Enabled  bool
	Schedule string
	// FXPairs are the currency pairs pulled from Yahoo, e.g. "EUR/CZK".
	FXPairs      []string
	HistoryStart time.Time
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	historyStart, err := time.Parse("2006-01-02", getEnv("REFRESH_HISTORY_START", "1990-01-01"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_HISTORY_START: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "5001"),
			Host:           getEnv("SERVER_HOST", "localhost"),
			RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/portfolio_backtest.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost",
			}),
		},
		Backtest: BacktestConfig{
			DefaultCurrency:     strings.ToUpper(getEnv("DEFAULT_CURRENCY", "CZK")),
			RiskFreeRate:        getEnvFloat("RISK_FREE_RATE", 0.03),
			InflationRate:       getEnvFloat("INFLATION_RATE", 0.033),
			MaxHorizonYears:     getEnvInt("MAX_HORIZON_YEARS", 20),
			MonteCarloPaths:     getEnvInt("MONTE_CARLO_PATHS", 1000),
			MaxMonteCarloPaths:  getEnvInt("MONTE_CARLO_MAX_PATHS", 10000),
			DefaultForecastYear: getEnvInt("MONTE_CARLO_FORECAST_YEARS", 10),
		},
		Cache: CacheConfig{
			Size: getEnvInt("RESULT_CACHE_SIZE", 256),
			TTL:  getEnvDuration("RESULT_CACHE_TTL", 30*time.Minute),
		},
		Refresh: RefreshConfig{
			Enabled:      getEnvBool("REFRESH_ENABLED", false),
			Schedule:     getEnv("REFRESH_SCHEDULE", "0 6 1 * *"),
			FXPairs:      getEnvList("REFRESH_FX_PAIRS", []string{"EUR/USD", "EUR/CZK", "USD/CZK"}),
			HistoryStart: historyStart,
		},
	}

	if config.Backtest.MonteCarloPaths > config.Backtest.MaxMonteCarloPaths {
		return nil, fmt.Errorf("MONTE_CARLO_PATHS (%d) exceeds MONTE_CARLO_MAX_PATHS (%d)",
			config.Backtest.MonteCarloPaths, config.Backtest.MaxMonteCarloPaths)
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q: %v", key, raw, err)
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q: %v", key, raw, err)
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q: %v", key, raw, err)
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q: %v", key, raw, err)
		return defaultValue
	}
	return v
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
