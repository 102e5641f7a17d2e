package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/cache"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/database"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/observability"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/repository"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/scheduler"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/version"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/yahoo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o750); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database: %s", cfg.Database.Path)

	schemaVersion, err := database.Migrate(context.Background(), db)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Printf("Database schema at version %d", schemaVersion)

	metrics := observability.NewMetrics("")

	// Create repositories
	indexRepo := repository.NewIndexRepository(db)
	instrumentRepo := repository.NewInstrumentRepository(db)
	exchangeRateRepo := repository.NewExchangeRateRepository(db)

	// Create services
	systemService := service.NewSystemService(db)
	dataLoaderService := service.NewDataLoaderService(
		indexRepo,
		instrumentRepo,
		exchangeRateRepo,
	)
	backtestService := service.NewBacktestService(
		dataLoaderService,
		cfg.Backtest,
		cache.New[any](cfg.Cache.Size, cfg.Cache.TTL),
		metrics,
	)
	indexService := service.NewIndexService(
		indexRepo,
		instrumentRepo,
	)
	dataService := service.NewDataService(
		db,
		indexRepo,
		exchangeRateRepo,
		backtestService,
	)
	refreshService := service.NewRefreshService(
		indexRepo,
		exchangeRateRepo,
		yahoo.NewFinanceClient(),
		backtestService,
		metrics,
		cfg.Refresh,
	)

	jobs, err := scheduler.New(cfg.Refresh, refreshService, backtestService)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	jobs.Start()

	// Create router
	router := api.NewRouter(api.Services{
		System:   systemService,
		Backtest: backtestService,
		Index:    indexService,
		Data:     dataService,
		Refresh:  refreshService,
	}, metrics, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server %s on %s", version.Version, cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jobs.Stop(ctx)

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
