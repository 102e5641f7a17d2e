package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/handlers"
	custommiddleware "github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/middleware"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/observability"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/service"
)

// Services bundles the services the router exposes.
type Services struct {
	System   *service.SystemService
	Backtest *service.BacktestService
	Index    *service.IndexService
	Data     *service.DataService
	Refresh  *service.RefreshService
}

// NewRouter creates and configures the HTTP router. metrics may be nil, in
// which case no /metrics route is mounted.
func NewRouter(services Services, metrics *observability.Metrics, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(custommiddleware.Metrics(metrics))

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(services.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/backtest", func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

			backtestHandler := handlers.NewBacktestHandler(services.Backtest, cfg.Backtest.MaxMonteCarloPaths)
			r.Post("/simulate", backtestHandler.Simulate)
			r.Post("/rebalancing", backtestHandler.Rebalancing)
			r.Post("/monte-carlo", backtestHandler.MonteCarlo)
			r.Post("/correlation", backtestHandler.Correlation)
			r.Post("/analyze", backtestHandler.Analyze)

			indexHandler := handlers.NewIndexHandler(services.Index)
			r.Get("/indexes", indexHandler.Indexes)
			r.Get("/search", indexHandler.Search)
			r.Route("/indexes/{indexCode}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateIndexCodeMiddleware)
				r.Get("/", indexHandler.Index)
			})
		})

		r.Route("/data", func(r chi.Router) {
			dataHandler := handlers.NewDataHandler(services.Data, services.Refresh)
			r.Get("/exchange-rate", dataHandler.GetExchangeRate)

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.APIKeyMiddleware)
				r.Put("/exchange-rate", dataHandler.SetExchangeRate)
				r.Put("/index-price", dataHandler.SetIndexPrice)
				r.Post("/index-price/import", dataHandler.ImportIndexPrices)
				r.Post("/refresh", dataHandler.Refresh)
			})
		})
	})

	return r
}
