package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/yahoo"
)

// MockYahooClient is a mock implementation of yahoo.Client for testing.
// It returns predefined test data instead of making actual API calls.
// Safe for concurrent use since the refresh fans out over symbols.
type MockYahooClient struct {
	mu sync.Mutex
	// MockResponse is the response returned for symbols without their own entry
	MockResponse yahoo.Response
	// Responses holds per-symbol responses
	Responses map[string]yahoo.Response
	// Errors holds per-symbol errors
	Errors map[string]error
	// MockError is the error to return for every symbol
	MockError error
	// QueryCount tracks how many times a query method was called
	QueryCount int
	// Queried records the symbols in call order
	Queried []string
}

// NewMockYahooClient creates a new mock Yahoo client with default test data.
// The default data holds 90 daily closes ending yesterday.
func NewMockYahooClient() *MockYahooClient {
	return &MockYahooClient{
		MockResponse: CreateMockYahooResponse(90),
		Responses:    make(map[string]yahoo.Response),
		Errors:       make(map[string]error),
	}
}

// QueryYahooSymbolByDateRange mocks the date range query with predefined test data.
func (m *MockYahooClient) QueryYahooSymbolByDateRange(_ context.Context, symbol string, _, _ time.Time) (yahoo.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.QueryCount++
	m.Queried = append(m.Queried, symbol)

	if m.MockError != nil {
		return yahoo.Response{}, m.MockError
	}
	if err, ok := m.Errors[symbol]; ok {
		return yahoo.Response{}, err
	}
	if resp, ok := m.Responses[symbol]; ok {
		return resp, nil
	}
	return m.MockResponse, nil
}

// ParseChart delegates to the real ParseChart method since it's pure logic with no side effects.
func (m *MockYahooClient) ParseChart(yahooResult yahoo.Response) (yahoo.PriceChart, error) {
	client := yahoo.NewFinanceClient()
	return client.ParseChart(yahooResult)
}

// WithError configures the mock to return the specified error for every symbol.
func (m *MockYahooClient) WithError(err error) *MockYahooClient {
	m.MockError = err
	return m
}

// WithSymbolError configures the mock to fail for one symbol only.
func (m *MockYahooClient) WithSymbolError(symbol string, err error) *MockYahooClient {
	m.Errors[symbol] = err
	return m
}

// WithResponse configures the default response.
func (m *MockYahooClient) WithResponse(resp yahoo.Response) *MockYahooClient {
	m.MockResponse = resp
	return m
}

// WithSymbolResponse configures the response for one symbol.
func (m *MockYahooClient) WithSymbolResponse(symbol string, resp yahoo.Response) *MockYahooClient {
	m.Responses[symbol] = resp
	return m
}

// WithEmptyResponse configures the mock to return an empty response (no data).
func (m *MockYahooClient) WithEmptyResponse() *MockYahooClient {
	m.MockResponse = yahoo.Response{
		Chart: yahoo.Chart{
			Result: []yahoo.Result{},
		},
	}
	return m
}

// CreateMockYahooResponse creates a mock Yahoo Finance API response with test data.
// The response includes `days` number of days of price data, ending yesterday.
func CreateMockYahooResponse(days int) yahoo.Response {
	now := time.Now().UTC()
	yesterday := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, time.UTC)

	dates := make([]time.Time, days)
	closes := make([]float64, days)
	for i := 0; i < days; i++ {
		dates[i] = yesterday.AddDate(0, 0, -days+i+1)
		closes[i] = 100.0 + float64(i)*0.5 + 0.25
	}

	return CreateMockYahooResponseForCloses(dates, closes)
}

// CreateMockYahooResponseForCloses creates a mock response with the given
// closes. Open, high and low equal the close.
func CreateMockYahooResponseForCloses(dates []time.Time, closes []float64) yahoo.Response {
	timestamps := make([]int64, len(dates))
	prices := make([]*float64, len(dates))
	volumes := make([]*int64, len(dates))

	for i, date := range dates {
		timestamps[i] = date.Unix()
		price := closes[i]
		volume := int64(1000000 + i*10000)
		prices[i] = &price
		volumes[i] = &volume
	}

	return yahoo.Response{
		Chart: yahoo.Chart{
			Result: []yahoo.Result{
				{
					Meta: yahoo.Meta{
						Symbol:           "TEST",
						Currency:         "USD",
						ExchangeName:     "SNP",
						FullExchangeName: "SNP",
						LongName:         "Test Index",
						Shortname:        "TEST",
					},
					Timestamp: timestamps,
					Indicators: yahoo.IndicatorsContainer{
						Quote: []yahoo.Quote{
							{
								Open:   prices,
								High:   prices,
								Low:    prices,
								Close:  prices,
								Volume: volumes,
							},
						},
					},
				},
			},
		},
	}
}

// CreateMockYahooErrorResponse creates a mock Yahoo response with an error.
func CreateMockYahooErrorResponse(errorMsg string) yahoo.Response {
	return yahoo.Response{
		Chart: yahoo.Chart{
			Result: []yahoo.Result{},
			Error:  &yahoo.ChartError{Code: "Not Found", Description: errorMsg},
		},
	}
}
