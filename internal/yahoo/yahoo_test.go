package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const chartBody = `{
  "chart": {
    "result": [{
      "meta": {"currency": "USD", "symbol": "^GSPC", "exchangeName": "SNP"},
      "timestamp": [1704153600, 1704240000, 1704326400],
      "indicators": {"quote": [{
        "open": [4745.2, null, 4697.4],
        "close": [4742.8, null, 4704.8],
        "high": [4754.3, null, 4726.8],
        "low": [4722.7, null, 4687.5],
        "volume": [3743050000, null, 3950760000]
      }]}
    }],
    "error": null
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *FinanceClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewFinanceClientWithBaseURL(server.Client(), server.URL)
}

func TestFinanceClient_QueryYahooSymbolByDateRange(t *testing.T) {
	t.Run("requests daily interval for the range", func(t *testing.T) {
		var gotPath, gotQuery string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.EscapedPath()
			gotQuery = r.URL.RawQuery
			w.Write([]byte(chartBody))
		})

		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
		resp, err := client.QueryYahooSymbolByDateRange(context.Background(), "^GSPC", start, end)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if gotPath != "/%5EGSPC" {
			t.Errorf("Expected escaped symbol path, got %s", gotPath)
		}
		if !strings.Contains(gotQuery, "interval=1d") || !strings.Contains(gotQuery, "period1=1704067200") {
			t.Errorf("Unexpected query: %s", gotQuery)
		}
		if len(resp.Chart.Result) != 1 {
			t.Errorf("Expected 1 result, got %d", len(resp.Chart.Result))
		}
	})

	t.Run("surfaces yahoo error object", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
		})

		_, err := client.QueryYahooSymbolByDateRange(context.Background(), "NOPE", time.Now().AddDate(0, -1, 0), time.Now())
		if err == nil {
			t.Fatal("Expected error, got nil")
		}
		if !strings.Contains(err.Error(), "delisted") {
			t.Errorf("Expected yahoo description in error, got: %v", err)
		}
	})

	t.Run("rejects non-JSON body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Too Many Requests"))
		})

		_, err := client.QueryYahooSymbolByDateRange(context.Background(), "URTH", time.Now().AddDate(0, -1, 0), time.Now())
		if err == nil {
			t.Fatal("Expected error, got nil")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(chartBody))
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.QueryYahooSymbolByDateRange(ctx, "URTH", time.Now().AddDate(0, -1, 0), time.Now())
		if err == nil {
			t.Fatal("Expected error for cancelled context, got nil")
		}
	})
}

func TestFinanceClient_ParseChart(t *testing.T) {
	client := NewFinanceClient()

	t.Run("skips days without a close", func(t *testing.T) {
		server := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(chartBody))
		})
		resp, err := server.QueryYahooSymbolByDateRange(context.Background(), "^GSPC", time.Now().AddDate(0, 0, -5), time.Now())
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		chart, err := client.ParseChart(resp)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if len(chart.Indicators) != 2 {
			t.Fatalf("Expected 2 indicators, got %d", len(chart.Indicators))
		}
		if chart.Indicators[1].PriceClose != 4704.8 {
			t.Errorf("Expected close 4704.8, got %f", chart.Indicators[1].PriceClose)
		}
		if chart.Currency != "USD" {
			t.Errorf("Expected USD, got %s", chart.Currency)
		}
	})

	t.Run("fails on empty result", func(t *testing.T) {
		_, err := client.ParseChart(Response{})
		if err == nil {
			t.Error("Expected error for empty response")
		}
	})

	t.Run("fails on mismatched lengths", func(t *testing.T) {
		price := 1.0
		resp := Response{Chart: Chart{Result: []Result{{
			Timestamp:  []int64{1, 2},
			Indicators: IndicatorsContainer{Quote: []Quote{{Close: []*float64{&price}}}},
		}}}}

		_, err := client.ParseChart(resp)
		if err == nil {
			t.Error("Expected error for mismatched lengths")
		}
	})

	t.Run("fails when every close is null", func(t *testing.T) {
		resp := Response{Chart: Chart{Result: []Result{{
			Timestamp:  []int64{1},
			Indicators: IndicatorsContainer{Quote: []Quote{{Close: []*float64{nil}}}},
		}}}}

		_, err := client.ParseChart(resp)
		if err == nil {
			t.Error("Expected error when no close is present")
		}
	})
}

func TestFXSymbol(t *testing.T) {
	if got := FXSymbol("eur", "CZK"); got != "EURCZK=X" {
		t.Errorf("Expected EURCZK=X, got %s", got)
	}
}
