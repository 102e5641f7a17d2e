package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/middleware"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware(t *testing.T) {
	setupRouter := func(m *observability.Metrics) http.Handler {
		r := chi.NewRouter()
		r.Use(middleware.Metrics(m))
		r.Get("/api/backtest/indexes/{indexCode}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		return r
	}

	t.Run("labels requests with the route pattern", func(t *testing.T) {
		m := observability.NewMetrics("test")
		router := setupRouter(m)

		for _, code := range []string{"sp500", "msci_world"} {
			req := httptest.NewRequest(http.MethodGet, "/api/backtest/indexes/"+code, nil)
			router.ServeHTTP(httptest.NewRecorder(), req)
		}

		got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/backtest/indexes/{indexCode}", http.MethodGet, "404"))
		if got != 2 {
			t.Errorf("Expected 2 requests recorded, got %v", got)
		}
	})

	t.Run("records unmatched routes", func(t *testing.T) {
		m := observability.NewMetrics("test")
		router := setupRouter(m)

		req := httptest.NewRequest(http.MethodGet, "/nope", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)

		got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("unmatched", http.MethodGet, "404"))
		if got != 1 {
			t.Errorf("Expected 1 unmatched request, got %v", got)
		}
	})

	t.Run("tolerates nil metrics", func(t *testing.T) {
		router := setupRouter(nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/backtest/indexes/sp500", nil))

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", w.Code)
		}
	})
}
