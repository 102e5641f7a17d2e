package testutil

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/model"
)

// IndexBuilder provides a fluent interface for creating test index mappings.
//
// Example usage:
//
//	// Simple creation with defaults
//	index := testutil.NewIndex().Build(t, db)
//
//	// Customized index
//	index := testutil.NewIndex().
//	    WithCode("dax").
//	    WithCurrency("EUR").
//	    WithYahooSymbol("^GDAXI").
//	    Build(t, db)
type IndexBuilder struct {
	ID          string
	Code        string
	Name        string
	Currency    string
	YahooSymbol *string
}

// NewIndex creates an IndexBuilder with sensible defaults.
func NewIndex() *IndexBuilder {
	suffix := strings.ToLower(randomAlphanumeric(6))
	return &IndexBuilder{
		ID:       MakeID(),
		Code:     "test_" + suffix,
		Name:     "Test Index " + suffix,
		Currency: "USD",
	}
}

// WithCode sets a custom code.
func (b *IndexBuilder) WithCode(code string) *IndexBuilder {
	b.Code = code
	return b
}

// WithName sets a custom name.
func (b *IndexBuilder) WithName(name string) *IndexBuilder {
	b.Name = name
	return b
}

// WithCurrency sets the native currency.
func (b *IndexBuilder) WithCurrency(currency string) *IndexBuilder {
	b.Currency = currency
	return b
}

// WithYahooSymbol makes the index refreshable under symbol.
func (b *IndexBuilder) WithYahooSymbol(symbol string) *IndexBuilder {
	b.YahooSymbol = &symbol
	return b
}

// Build creates the index mapping in the database and returns it.
func (b *IndexBuilder) Build(t *testing.T, db *sql.DB) model.IndexMapping {
	t.Helper()

	query := `
		INSERT INTO index_mapping (id, code, name, currency, yahoo_symbol)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query, b.ID, b.Code, b.Name, b.Currency, b.YahooSymbol)
	if err != nil {
		t.Fatalf("Failed to create test index: %v", err)
	}

	return model.IndexMapping{
		ID:          b.ID,
		Code:        b.Code,
		Name:        b.Name,
		Currency:    b.Currency,
		YahooSymbol: b.YahooSymbol,
	}
}

// IndexPriceBuilder provides a fluent interface for creating index closes.
type IndexPriceBuilder struct {
	ID         string
	IndexCode  string
	Date       time.Time
	ClosePrice float64
}

// NewIndexPrice creates an IndexPriceBuilder
func NewIndexPrice(indexCode string) *IndexPriceBuilder {
	return &IndexPriceBuilder{
		ID:         MakeID(),
		IndexCode:  indexCode,
		Date:       time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC),
		ClosePrice: 100.0,
	}
}

// WithDate sets the price date
func (b *IndexPriceBuilder) WithDate(date time.Time) *IndexPriceBuilder {
	b.Date = date
	return b
}

// WithPrice sets the close
func (b *IndexPriceBuilder) WithPrice(price float64) *IndexPriceBuilder {
	b.ClosePrice = price
	return b
}

// Build creates the index close in the database
func (b *IndexPriceBuilder) Build(t *testing.T, db *sql.DB) model.IndexPrice {
	t.Helper()

	query := `
		INSERT INTO index_historical_data (id, index_code, date, close_price)
		VALUES (?, ?, ?, ?)
	`

	_, err := db.Exec(query, b.ID, b.IndexCode, b.Date.Format("2006-01-02"), b.ClosePrice)
	if err != nil {
		t.Fatalf("Failed to create index price: %v", err)
	}

	return model.IndexPrice{
		ID:         b.ID,
		IndexCode:  b.IndexCode,
		Date:       b.Date,
		ClosePrice: b.ClosePrice,
	}
}

// CreateMonthlyPrices stores one close per month-end starting with the month
// of start, using closes in order.
//
// Example usage:
//
//	// Jan, Feb and Mar 2020 month-end closes
//	testutil.CreateMonthlyPrices(t, db, "sp500", testutil.Date(2020, 1, 1), 100, 110, 121)
func CreateMonthlyPrices(t *testing.T, db *sql.DB, indexCode string, start time.Time, closes ...float64) []model.IndexPrice {
	t.Helper()

	prices := make([]model.IndexPrice, len(closes))
	for i, c := range closes {
		prices[i] = NewIndexPrice(indexCode).
			WithDate(MonthEnd(start.Year(), start.Month()+time.Month(i))).
			WithPrice(c).
			Build(t, db)
	}
	return prices
}

// ExchangeRateBuilder provides a fluent interface for creating exchange rates.
type ExchangeRateBuilder struct {
	ID           string
	FromCurrency string
	ToCurrency   string
	Rate         float64
	Date         time.Time
}

// NewExchangeRate creates an ExchangeRateBuilder for the pair.
func NewExchangeRate(from, to string) *ExchangeRateBuilder {
	return &ExchangeRateBuilder{
		ID:           MakeID(),
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         1.0,
		Date:         time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

// WithRate sets the rate
func (b *ExchangeRateBuilder) WithRate(rate float64) *ExchangeRateBuilder {
	b.Rate = rate
	return b
}

// WithDate sets the rate date
func (b *ExchangeRateBuilder) WithDate(date time.Time) *ExchangeRateBuilder {
	b.Date = date
	return b
}

// Build creates the exchange rate in the database
func (b *ExchangeRateBuilder) Build(t *testing.T, db *sql.DB) model.ExchangeRate {
	t.Helper()

	query := `
		INSERT INTO exchange_rate (id, from_currency, to_currency, rate, date)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query, b.ID, b.FromCurrency, b.ToCurrency, b.Rate, b.Date.Format("2006-01-02"))
	if err != nil {
		t.Fatalf("Failed to create exchange rate: %v", err)
	}

	return model.ExchangeRate{
		ID:           b.ID,
		FromCurrency: b.FromCurrency,
		ToCurrency:   b.ToCurrency,
		Rate:         b.Rate,
		Date:         b.Date,
	}
}

// CreateMonthlyRates stores one rate per month-end starting with the month of start.
func CreateMonthlyRates(t *testing.T, db *sql.DB, from, to string, start time.Time, rates ...float64) []model.ExchangeRate {
	t.Helper()

	out := make([]model.ExchangeRate, len(rates))
	for i, r := range rates {
		out[i] = NewExchangeRate(from, to).
			WithDate(MonthEnd(start.Year(), start.Month()+time.Month(i))).
			WithRate(r).
			Build(t, db)
	}
	return out
}

// InstrumentBuilder provides a fluent interface for creating catalog instruments.
//
// Example usage:
//
//	etf := testutil.NewInstrument("sp500").
//	    WithName("iShares Core S&P 500").
//	    WithTER(0.0007).
//	    Build(t, db)
type InstrumentBuilder struct {
	ID        string
	ISIN      string
	Name      string
	TER       float64
	IndexCode string
	FundSize  *float64
}

// NewInstrument creates an InstrumentBuilder tracking indexCode.
func NewInstrument(indexCode string) *InstrumentBuilder {
	return &InstrumentBuilder{
		ID:        MakeID(),
		ISIN:      MakeISIN(RandomCountryPrefix()),
		Name:      MakeFundName("Test ETF"),
		TER:       0.002,
		IndexCode: indexCode,
	}
}

// WithISIN sets the ISIN
func (b *InstrumentBuilder) WithISIN(isin string) *InstrumentBuilder {
	b.ISIN = isin
	return b
}

// WithName sets the name
func (b *InstrumentBuilder) WithName(name string) *InstrumentBuilder {
	b.Name = name
	return b
}

// WithTER sets the total expense ratio as a fraction
func (b *InstrumentBuilder) WithTER(ter float64) *InstrumentBuilder {
	b.TER = ter
	return b
}

// WithFundSize sets the fund size
func (b *InstrumentBuilder) WithFundSize(size float64) *InstrumentBuilder {
	b.FundSize = &size
	return b
}

// Build creates the instrument in the database
func (b *InstrumentBuilder) Build(t *testing.T, db *sql.DB) model.Instrument {
	t.Helper()

	query := `
		INSERT INTO instrument (id, isin, name, ter, index_code, fund_size)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query, b.ID, b.ISIN, b.Name, b.TER, b.IndexCode, b.FundSize)
	if err != nil {
		t.Fatalf("Failed to create instrument: %v", err)
	}

	return model.Instrument{
		ID:        b.ID,
		ISIN:      b.ISIN,
		Name:      b.Name,
		TER:       b.TER,
		IndexCode: b.IndexCode,
		FundSize:  b.FundSize,
	}
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last day of the month; months past December roll
// into the following years.
func MonthEnd(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}
