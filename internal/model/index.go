package model

import "time"

// IndexMapping describes a tracked market index and where its prices come from.
type IndexMapping struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Currency    string  `json:"currency"`
	YahooSymbol *string `json:"yahooSymbol,omitempty"`
}

// IndexPrice is a month-end close of an index in its own currency.
type IndexPrice struct {
	ID         string    `json:"id"`
	IndexCode  string    `json:"indexCode"`
	Date       time.Time `json:"date"`
	ClosePrice float64   `json:"closePrice"`
}

// IndexSummary lists an index together with the span of its stored history.
type IndexSummary struct {
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	Currency   string     `json:"currency"`
	StartDate  *time.Time `json:"startDate"`
	EndDate    *time.Time `json:"endDate"`
	DataPoints int        `json:"dataPoints"`
}

// IndexHistory is the stored price history of a single index.
type IndexHistory struct {
	Index  IndexMapping `json:"index"`
	Prices []IndexPrice `json:"prices"`
}

// Instrument is an ETF that tracks one of the indexes.
type Instrument struct {
	ID        string   `json:"id"`
	ISIN      string   `json:"isin"`
	Name      string   `json:"name"`
	TER       float64  `json:"ter"`
	IndexCode string   `json:"indexCode"`
	FundSize  *float64 `json:"fundSize,omitempty"`
}

// ExchangeRate represents a currency exchange rate for a specific date.
type ExchangeRate struct {
	ID           string    `json:"id"`           // Unique identifier for the rate
	FromCurrency string    `json:"fromCurrency"` // Source currency code
	ToCurrency   string    `json:"toCurrency"`   // Target currency code
	Rate         float64   `json:"rate"`         // Units of ToCurrency per unit of FromCurrency
	Date         time.Time `json:"date"`         // Date the rate applies to
}
