package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/observability"
)

// Metrics records the count and latency of every request, labelled with the
// matched chi route pattern so path parameters don't create new series.
// Unmatched requests are recorded under "unmatched".
func Metrics(m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			m.RecordHTTPRequest(route, r.Method, wrapped.statusCode, time.Since(start))
		})
	}
}
