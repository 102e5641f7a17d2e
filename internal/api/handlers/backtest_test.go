package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/handlers"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/backtest"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/testutil"
)

const maxTestSimulations = 500

func newBacktestHandler(t *testing.T) *handlers.BacktestHandler {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.CreateMonthlyPrices(t, db, "sp500", testutil.Date(2020, 1, 1), 100, 104, 98, 103, 110, 107, 112, 118, 115, 121, 126, 130)
	testutil.CreateMonthlyPrices(t, db, "msci_world", testutil.Date(2020, 1, 1), 100, 101, 97, 99, 104, 108, 106, 111, 113, 110, 117, 119)
	return handlers.NewBacktestHandler(testutil.NewTestBacktestService(t, db), maxTestSimulations)
}

func postJSON(t *testing.T, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

const twoIndexPortfolio = `[
	{"indexCode": "sp500", "weight": 0.6, "ter": 0},
	{"indexCode": "msci_world", "weight": 0.4, "ter": 0}
]`

func TestBacktestHandler_Simulate(t *testing.T) {
	handler := newBacktestHandler(t)

	t.Run("returns the evolution and analysis", func(t *testing.T) {
		body := `{"portfolio": ` + twoIndexPortfolio + `, "startDate": "2020-01-01", "endDate": "2020-12-31",
			"initialAmount": 1000, "currency": "USD", "rebalancingStrategy": "quarterly"}`

		w := httptest.NewRecorder()
		handler.Simulate(w, postJSON(t, "/api/backtest/simulate", body))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var result service.SimulationResult
		if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(result.Evolution) != 12 {
			t.Errorf("Expected 12 evolution points, got %d", len(result.Evolution))
		}
		if result.RebalancingStrategy != backtest.StrategyQuarterly {
			t.Errorf("Expected quarterly strategy, got %s", result.RebalancingStrategy)
		}
		if result.Summary.AmountInvested != 1000 {
			t.Errorf("Expected 1000 invested, got %v", result.Summary.AmountInvested)
		}
	})

	t.Run("returns 400 for malformed JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Simulate(w, postJSON(t, "/api/backtest/simulate", `{"portfolio": [`))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("returns 400 for unknown fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Simulate(w, postJSON(t, "/api/backtest/simulate", `{"portfolioo": []}`))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("returns 400 with field details for invalid weights", func(t *testing.T) {
		body := `{"portfolio": [{"indexCode": "sp500", "weight": 0.5}], "startDate": "2020-01-01",
			"endDate": "2020-12-31", "initialAmount": 1000}`

		w := httptest.NewRecorder()
		handler.Simulate(w, postJSON(t, "/api/backtest/simulate", body))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected status 400, got %d", w.Code)
		}

		var resp struct {
			Error   string            `json:"error"`
			Details map[string]string `json:"details"`
		}
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&resp)

		if _, ok := resp.Details["weights"]; !ok {
			t.Errorf("Expected weights in details, got %v", resp.Details)
		}
	})

	t.Run("returns 404 for an unknown index", func(t *testing.T) {
		body := `{"portfolio": [{"indexCode": "nikkei", "weight": 1}], "startDate": "2020-01-01",
			"endDate": "2020-12-31", "initialAmount": 1000, "currency": "USD"}`

		w := httptest.NewRecorder()
		handler.Simulate(w, postJSON(t, "/api/backtest/simulate", body))

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})

	t.Run("returns 422 with the missing range", func(t *testing.T) {
		body := `{"portfolio": [{"indexCode": "sp500", "weight": 1}], "startDate": "2019-06-01",
			"endDate": "2020-12-31", "initialAmount": 1000, "currency": "USD"}`

		w := httptest.NewRecorder()
		handler.Simulate(w, postJSON(t, "/api/backtest/simulate", body))

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("Expected status 422, got %d: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Details map[string]string `json:"details"`
		}
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&resp)

		if resp.Details["missingFrom"] != "2019-06-30" || resp.Details["missingTo"] != "2019-12-31" {
			t.Errorf("Expected gap 2019-06-30..2019-12-31, got %v", resp.Details)
		}
		if resp.Details["instrument"] != "S&P 500" {
			t.Errorf("Expected instrument S&P 500, got %s", resp.Details["instrument"])
		}
	})
}

func TestBacktestHandler_Rebalancing(t *testing.T) {
	handler := newBacktestHandler(t)

	t.Run("compares the requested strategies", func(t *testing.T) {
		body := `{"portfolio": ` + twoIndexPortfolio + `, "startDate": "2020-01-01", "endDate": "2020-12-31",
			"initialAmount": 1000, "currency": "USD", "strategies": ["none", "monthly", "threshold"],
			"includeEvolution": true}`

		w := httptest.NewRecorder()
		handler.Rebalancing(w, postJSON(t, "/api/backtest/rebalancing", body))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var comparison backtest.Comparison
		if err := json.NewDecoder(w.Body).Decode(&comparison); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(comparison.Strategies) != 3 {
			t.Fatalf("Expected 3 strategies, got %d", len(comparison.Strategies))
		}
		for _, s := range comparison.Strategies {
			if len(s.Evolution) != 12 {
				t.Errorf("Expected 12 evolution points for %s, got %d", s.Strategy, len(s.Evolution))
			}
		}
	})

	t.Run("returns 400 for an unknown strategy", func(t *testing.T) {
		body := `{"portfolio": ` + twoIndexPortfolio + `, "startDate": "2020-01-01", "endDate": "2020-12-31",
			"initialAmount": 1000, "strategies": ["weekly"]}`

		w := httptest.NewRecorder()
		handler.Rebalancing(w, postJSON(t, "/api/backtest/rebalancing", body))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}

func TestBacktestHandler_MonteCarlo(t *testing.T) {
	handler := newBacktestHandler(t)

	t.Run("projects the portfolio", func(t *testing.T) {
		body := `{"portfolio": ` + twoIndexPortfolio + `, "startDate": "2020-01-01", "endDate": "2020-12-31",
			"initialAmount": 1000, "currency": "USD", "forecastYears": 3, "simulations": 200, "seed": 1}`

		w := httptest.NewRecorder()
		handler.MonteCarlo(w, postJSON(t, "/api/backtest/monte-carlo", body))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var projection backtest.Projection
		if err := json.NewDecoder(w.Body).Decode(&projection); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if projection.Paths != 200 {
			t.Errorf("Expected 200 simulations, got %d", projection.Paths)
		}
		if len(projection.Points) != 37 {
			t.Errorf("Expected 37 chart points, got %d", len(projection.Points))
		}
	})

	t.Run("returns 400 above the simulation cap", func(t *testing.T) {
		body := `{"portfolio": ` + twoIndexPortfolio + `, "startDate": "2020-01-01", "endDate": "2020-12-31",
			"initialAmount": 1000, "simulations": 100000}`

		w := httptest.NewRecorder()
		handler.MonteCarlo(w, postJSON(t, "/api/backtest/monte-carlo", body))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("returns 400 for a horizon out of range", func(t *testing.T) {
		body := `{"portfolio": ` + twoIndexPortfolio + `, "startDate": "2020-01-01", "endDate": "2020-12-31",
			"initialAmount": 1000, "forecastYears": 80}`

		w := httptest.NewRecorder()
		handler.MonteCarlo(w, postJSON(t, "/api/backtest/monte-carlo", body))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}

func TestBacktestHandler_Correlation(t *testing.T) {
	handler := newBacktestHandler(t)

	t.Run("returns the pairwise matrix", func(t *testing.T) {
		body := `{"portfolio": ` + twoIndexPortfolio + `, "startDate": "2020-01-01", "endDate": "2020-12-31", "currency": "USD"}`

		w := httptest.NewRecorder()
		handler.Correlation(w, postJSON(t, "/api/backtest/correlation", body))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var matrix backtest.CorrelationMatrix
		if err := json.NewDecoder(w.Body).Decode(&matrix); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(matrix.Correlations) != 1 {
			t.Errorf("Expected 1 pair, got %d", len(matrix.Correlations))
		}
		if len(matrix.ETFNames) != 2 {
			t.Errorf("Expected 2 names, got %d", len(matrix.ETFNames))
		}
	})

	t.Run("returns 400 for a single instrument", func(t *testing.T) {
		body := `{"portfolio": [{"indexCode": "sp500", "weight": 1}], "startDate": "2020-01-01", "endDate": "2020-12-31", "currency": "USD"}`

		w := httptest.NewRecorder()
		handler.Correlation(w, postJSON(t, "/api/backtest/correlation", body))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}

		var resp response.ErrorResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&resp)

		if resp.Error != "not enough instruments" {
			t.Errorf("Expected 'not enough instruments', got '%s'", resp.Error)
		}
	})
}

func TestBacktestHandler_Analyze(t *testing.T) {
	handler := newBacktestHandler(t)

	body := `{"portfolio": ` + twoIndexPortfolio + `, "startDate": "2020-01-01", "endDate": "2020-12-31",
		"initialAmount": 1000, "currency": "USD", "forecastYears": 2, "simulations": 100, "seed": 3,
		"strategies": ["none", "yearly"]}`

	w := httptest.NewRecorder()
	handler.Analyze(w, postJSON(t, "/api/backtest/analyze", body))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var result map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	for _, key := range []string{"simulation", "rebalancing", "monteCarlo", "correlation"} {
		if raw, ok := result[key]; !ok || string(raw) == "null" {
			t.Errorf("Expected %s in the response", key)
		}
	}
}
