package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Yahoo Finance chart endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Client is the subset of FinanceClient the services depend on.
type Client interface {
	QueryYahooSymbolByDateRange(ctx context.Context, symbol string, startDate, endDate time.Time) (Response, error)
	ParseChart(yahooResult Response) (PriceChart, error)
}

// FinanceClient provides methods for fetching financial data from Yahoo Finance API.
// It wraps an HTTP client and provides convenient methods for querying index
// and currency pair price histories.
type FinanceClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewFinanceClient creates a new Yahoo Finance client with default HTTP settings.
func NewFinanceClient() *FinanceClient {
	return NewFinanceClientWithBaseURL(&http.Client{Timeout: 30 * time.Second}, DefaultBaseURL)
}

// NewFinanceClientWithBaseURL creates a client that queries baseURL instead of
// Yahoo. Used to point the client at a test server.
func NewFinanceClientWithBaseURL(httpClient *http.Client, baseURL string) *FinanceClient {
	return &FinanceClient{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// FXSymbol returns the Yahoo symbol of a currency pair, e.g. "EURCZK=X".
func FXSymbol(from, to string) string {
	return strings.ToUpper(from) + strings.ToUpper(to) + "=X"
}

// ParseChart converts a raw Yahoo Finance API response into a structured price chart.
// Days without a close price are skipped.
//
// The method performs validation to ensure:
//   - A result is present
//   - Timestamp data is present
//   - Close price data is present and matches the timestamps in length
func (c *FinanceClient) ParseChart(yahooResult Response) (PriceChart, error) {
	if len(yahooResult.Chart.Result) == 0 {
		return PriceChart{}, fmt.Errorf("no results returned")
	}
	result := yahooResult.Chart.Result[0]

	if len(result.Timestamp) == 0 {
		return PriceChart{}, fmt.Errorf("no price data returned")
	}
	if len(result.Indicators.Quote) == 0 || len(result.Indicators.Quote[0].Close) == 0 {
		return PriceChart{}, fmt.Errorf("no close prices returned")
	}

	quote := result.Indicators.Quote[0]
	if len(quote.Close) != len(result.Timestamp) {
		return PriceChart{}, fmt.Errorf("mismatched data lengths")
	}

	indicators := make([]Indicators, 0, len(result.Timestamp))
	for i, v := range result.Timestamp {
		if quote.Close[i] == nil {
			continue
		}
		indicators = append(indicators, Indicators{
			Date:       time.Unix(v, 0).UTC(),
			PriceOpen:  valueAt(quote.Open, i),
			PriceClose: *quote.Close[i],
			Volume:     valueAt(quote.Volume, i),
			PriceHigh:  valueAt(quote.High, i),
			PriceLow:   valueAt(quote.Low, i),
		})
	}
	if len(indicators) == 0 {
		return PriceChart{}, fmt.Errorf("no close prices returned")
	}

	return PriceChart{
		Symbol:           result.Meta.Symbol,
		Currency:         result.Meta.Currency,
		ExchangeName:     result.Meta.ExchangeName,
		FullExchangeName: result.Meta.FullExchangeName,
		LongName:         result.Meta.LongName,
		Shortname:        result.Meta.Shortname,
		Indicators:       indicators,
	}, nil
}

func valueAt[T int64 | float64](values []*T, i int) T {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

// QueryYahooSymbolByDateRange fetches daily price data for a symbol within a specific date range.
// This method is used for historical backfilling of index and currency pair history.
//
// Parameters:
//   - symbol: Yahoo symbol (e.g., "^GSPC", "EURCZK=X")
//   - startDate: Beginning of date range (inclusive)
//   - endDate: End of date range (inclusive)
func (c *FinanceClient) QueryYahooSymbolByDateRange(ctx context.Context, symbol string, startDate, endDate time.Time) (Response, error) {
	endpoint := fmt.Sprintf(
		"%s/%s?interval=1d&period1=%d&period2=%d",
		c.baseURL,
		url.PathEscape(symbol),
		startDate.Unix(),
		endDate.Unix(),
	)
	result, err := c.queryYahoo(ctx, endpoint)
	if err != nil {
		return Response{}, err
	}
	if len(result.Chart.Result) == 0 {
		return Response{}, fmt.Errorf("no results returned for symbol %s", symbol)
	}

	return result, nil
}

// queryYahoo executes a request against the chart API, parses the JSON body
// and surfaces the error object Yahoo returns in place of results.
//
// The method sets required headers:
//   - User-Agent: Mimics a browser to avoid API blocking
//   - Accept: Requests JSON response format
func (c *FinanceClient) queryYahoo(ctx context.Context, endpoint string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Response{}, err
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return Response{}, fmt.Errorf("failed to decode yahoo response (status %d): %w", resp.StatusCode, err)
	}

	if response.Chart.Error != nil {
		return response, fmt.Errorf("yahoo error: %s: %s", response.Chart.Error.Code, response.Chart.Error.Description)
	}

	return response, nil
}
