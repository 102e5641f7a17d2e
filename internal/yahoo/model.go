package yahoo

import "time"

// Response represents the raw JSON response structure from Yahoo Finance API.
// This type maps directly to the Yahoo Finance chart API response format,
// containing nested structures for metadata, timestamps, and price indicators.
//
// Price arrays hold pointers because Yahoo returns null for days without a
// quote (exchange holidays, currency pairs on weekends).
type Response struct {
	Chart Chart `json:"chart"`
}

// Chart is the top-level chart object of a Response.
type Chart struct {
	Result []Result    `json:"result"`
	Error  *ChartError `json:"error"`
}

// ChartError is the error object Yahoo returns instead of results.
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Result is the chart of one symbol.
type Result struct {
	Meta       Meta                `json:"meta"`
	Timestamp  []int64             `json:"timestamp"`
	Indicators IndicatorsContainer `json:"indicators"`
}

// Meta is the symbol metadata of a Result.
type Meta struct {
	Currency         string `json:"currency"`
	Symbol           string `json:"symbol"`
	ExchangeName     string `json:"exchangeName"`
	FullExchangeName string `json:"fullExchangeName"`
	LongName         string `json:"longName"`
	Shortname        string `json:"shortName"`
}

// IndicatorsContainer wraps the quote arrays of a Result.
type IndicatorsContainer struct {
	Quote []Quote `json:"quote"`
}

// Quote holds the OHLCV arrays, index-aligned with Result.Timestamp.
type Quote struct {
	Open   []*float64 `json:"open"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
}

// PriceChart represents a parsed and structured price chart from Yahoo Finance.
// This is the application's internal representation after parsing the raw Response.
// Days without a close are left out.
type PriceChart struct {
	Currency         string       `json:"currency"`
	Symbol           string       `json:"symbol"`
	ExchangeName     string       `json:"exchangeName"`
	FullExchangeName string       `json:"fullExchangeName"`
	LongName         string       `json:"longName"`
	Shortname        string       `json:"shortName"`
	Indicators       []Indicators `json:"indicators"`
}

// Indicators represents a single day's price data for a financial instrument.
// Fields other than Date and PriceClose are zero when Yahoo returned null.
type Indicators struct {
	Date       time.Time
	PriceOpen  float64
	PriceClose float64
	Volume     int64
	PriceHigh  float64
	PriceLow   float64
}
