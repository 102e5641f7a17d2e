package testutil

import (
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/cache"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/repository"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/yahoo"
)

// TestBacktestConfig returns the production backtest defaults.
func TestBacktestConfig() config.BacktestConfig {
	return config.BacktestConfig{
		DefaultCurrency:     "CZK",
		RiskFreeRate:        0.03,
		InflationRate:       0.033,
		MaxHorizonYears:     20,
		MonteCarloPaths:     200,
		MaxMonteCarloPaths:  10000,
		DefaultForecastYear: 10,
	}
}

// TestRefreshConfig returns a refresh configuration pulling EUR/CZK from 2020.
func TestRefreshConfig() config.RefreshConfig {
	return config.RefreshConfig{
		Schedule:     "0 6 1 * *",
		FXPairs:      []string{"EUR/CZK"},
		HistoryStart: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func NewTestDataLoaderService(t *testing.T, db *sql.DB) *service.DataLoaderService {
	t.Helper()

	return service.NewDataLoaderService(
		repository.NewIndexRepository(db),
		repository.NewInstrumentRepository(db),
		repository.NewExchangeRateRepository(db),
	)
}

// NewTestBacktestService builds a BacktestService with a 64 entry result cache
// and no metrics.
func NewTestBacktestService(t *testing.T, db *sql.DB) *service.BacktestService {
	t.Helper()

	return service.NewBacktestService(
		NewTestDataLoaderService(t, db),
		TestBacktestConfig(),
		cache.New[any](64, time.Hour),
		nil,
	)
}

func NewTestIndexService(t *testing.T, db *sql.DB) *service.IndexService {
	t.Helper()

	return service.NewIndexService(
		repository.NewIndexRepository(db),
		repository.NewInstrumentRepository(db),
	)
}

func NewTestDataService(t *testing.T, db *sql.DB, backtestService *service.BacktestService) *service.DataService {
	t.Helper()

	return service.NewDataService(
		db,
		repository.NewIndexRepository(db),
		repository.NewExchangeRateRepository(db),
		backtestService,
	)
}

func NewTestRefreshService(t *testing.T, db *sql.DB, yahooClient yahoo.Client) *service.RefreshService {
	t.Helper()

	return service.NewRefreshService(
		repository.NewIndexRepository(db),
		repository.NewExchangeRateRepository(db),
		yahooClient,
		nil,
		nil,
		TestRefreshConfig(),
	)
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db)
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeISIN generates a realistic ISIN code for testing.
//
// Example usage:
//
//	isin := testutil.MakeISIN("US")
//	// Returns: "US1A2B3C4D5E"
func MakeISIN(prefix string) string {
	if prefix == "" {
		prefix = "US"
	}
	return prefix + randomAlphanumeric(10)
}

// MakeFundName generates a unique fund name for testing.
//
// Example usage:
//
//	name := testutil.MakeFundName("Tech Fund")
//	// Returns: "Tech Fund XYZ789"
func MakeFundName(base string) string {
	if base == "" {
		base = "Fund"
	}
	return base + " " + randomAlphanumeric(6)
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}

// Common test constants

var (
	// CommonCountryPrefixes contains common ISIN country prefixes
	CommonCountryPrefixes = []string{"US", "GB", "DE", "FR", "JP", "CA", "CH", "AU"}
)

// RandomCountryPrefix returns a random country prefix from CommonCountryPrefixes.
func RandomCountryPrefix() string {
	//nolint:gosec // G404: Using math/rand for test data generation is acceptable
	return CommonCountryPrefixes[rand.Intn(len(CommonCountryPrefixes))]
}
