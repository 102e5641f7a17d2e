package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrIndexNotFound indicates that no index mapping exists for the given code.
	ErrIndexNotFound = errors.New("index not found")

	// ErrExchangeRateNotFound indicates no record for a specific currency and date combination
	ErrExchangeRateNotFound = errors.New("exchange rate for currency/date not found")
)

// Business logic errors represent validation failures or constraint violations.
var (
	// ErrInvalidDateRange indicates that the provided date range is invalid
	// (e.g., start date is after end date).
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidIndexCode indicates that an index code path parameter is malformed.
	ErrInvalidIndexCode = errors.New("invalid index code")

	ErrInvalidCurrency = errors.New("invalid currency")
	ErrInvalidDate     = errors.New("invalid date")

	// ErrNoData indicates that a refresh or import produced no usable rows.
	ErrNoData = errors.New("no data")
)

// Operation failure errors represent system-level failures when retrieving or processing data.
var (
	ErrFailedToRetrieveIndexes      = errors.New("failed to retrieve indexes")
	ErrFailedToRetrieveIndex        = errors.New("failed to retrieve index")
	ErrFailedToSearchInstruments    = errors.New("failed to search instruments")
	ErrFailedToRunBacktest          = errors.New("failed to run backtest")
	ErrFailedToRetrieveExchangeRate = errors.New("failed to retrieve exchange rate")
	ErrFailedToUpdateExchangeRate   = errors.New("failed to update exchange rate")
	ErrFailedToUpdateIndexPrice     = errors.New("failed to update index price")
	ErrFailedToImportIndexPrices    = errors.New("failed to import index prices")
	ErrFailedToRefreshMarketData    = errors.New("failed to refresh market data")
	ErrInvalidCSVHeaders            = errors.New("invalid CSV headers")

	// System operation errors
	ErrFailedToGetVersionInfo = errors.New("failed to get version information")
)
