package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/middleware"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/observability"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/testutil"
)

const testAPIKey = "router-test-key"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	t.Setenv("INTERNAL_API_KEY", testAPIKey)

	db := testutil.SetupTestDB(t)
	backtestService := testutil.NewTestBacktestService(t, db)

	cfg := &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 30 * time.Second},
		CORS:     config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Backtest: testutil.TestBacktestConfig(),
		Refresh:  testutil.TestRefreshConfig(),
	}

	return api.NewRouter(api.Services{
		System:   testutil.NewTestSystemService(t, db),
		Backtest: backtestService,
		Index:    testutil.NewTestIndexService(t, db),
		Data:     testutil.NewTestDataService(t, db, backtestService),
		Refresh:  testutil.NewTestRefreshService(t, db, testutil.NewMockYahooClient()),
	}, observability.NewMetrics(""), cfg)
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"health", http.MethodGet, "/api/system/health", http.StatusOK},
		{"version", http.MethodGet, "/api/system/version", http.StatusOK},
		{"index list", http.MethodGet, "/api/backtest/indexes", http.StatusOK},
		{"index history", http.MethodGet, "/api/backtest/indexes/sp500", http.StatusOK},
		{"invalid index code", http.MethodGet, "/api/backtest/indexes/S&P", http.StatusBadRequest},
		{"search", http.MethodGet, "/api/backtest/search?q=ishares", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"unknown route", http.MethodGet, "/api/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestRouter_DataWritesRequireAPIKey(t *testing.T) {
	router := newTestRouter(t)
	body := `{"date": "2020-01-31", "fromCurrency": "EUR", "toCurrency": "CZK", "rate": "25"}`

	t.Run("rejects writes without credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/data/exchange-rate", strings.NewReader(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", w.Code)
		}
	})

	t.Run("accepts writes with key and time token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/data/exchange-rate", strings.NewReader(body))
		req.Header.Set("X-API-Key", testAPIKey)
		req.Header.Set("X-Time-Token", middleware.GenerateTimeToken(testAPIKey))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("reads stay public", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/data/exchange-rate?fromCurrency=EUR&toCurrency=CZK&date=2020-01-31", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var rate map[string]any
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&rate)

		if rate["rate"] != 25.0 {
			t.Errorf("Expected rate 25, got %v", rate["rate"])
		}
	})
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/backtest/simulate", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Expected allowed origin header, got %q", got)
	}
}
