// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. Every Record
// method is safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Backtest metrics
	BacktestRuns       *prometheus.CounterVec
	BacktestDuration   *prometheus.HistogramVec
	MonteCarloPaths    prometheus.Counter
	StrategiesCompared prometheus.Counter

	// Cache metrics
	CacheHits    *prometheus.CounterVec
	CacheMisses  *prometheus.CounterVec
	CacheEntries prometheus.Gauge

	// Market data metrics
	RefreshRuns        *prometheus.CounterVec
	RefreshPointsAdded *prometheus.CounterVec
	LastRefresh        prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on its own registry,
// together with the Go runtime and process collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "portfolio_backtest"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// HTTP metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route pattern, method and status",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),

		// Backtest metrics
		BacktestRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by analysis and outcome",
		}, []string{"analysis", "outcome"}),
		BacktestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest computation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"analysis"}),
		MonteCarloPaths: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "monte_carlo_paths_total",
			Help:      "Total number of Monte Carlo paths generated",
		}),
		StrategiesCompared: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "strategies_compared_total",
			Help:      "Total number of rebalancing strategies simulated in comparisons",
		}),

		// Cache metrics
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of result cache hits by analysis",
		}, []string{"analysis"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of result cache misses by analysis",
		}, []string{"analysis"}),
		CacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current number of cached results",
		}),

		// Market data metrics
		RefreshRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Total number of market data refresh runs by status",
		}, []string{"status"}),
		RefreshPointsAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "points_added_total",
			Help:      "Total number of month-end points written by series kind",
		}, []string{"kind"}),
		LastRefresh: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "last_success_timestamp",
			Help:      "Unix timestamp of the last refresh that updated at least one series",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records a served request under its route pattern.
func (m *Metrics) RecordHTTPRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// RecordBacktest records one analysis run.
func (m *Metrics) RecordBacktest(analysis string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.BacktestRuns.WithLabelValues(analysis, outcome).Inc()
	m.BacktestDuration.WithLabelValues(analysis).Observe(d.Seconds())
}

// RecordMonteCarloPaths adds generated paths to the counter.
func (m *Metrics) RecordMonteCarloPaths(paths int) {
	if m == nil {
		return
	}
	m.MonteCarloPaths.Add(float64(paths))
}

// RecordStrategiesCompared adds simulated strategies to the counter.
func (m *Metrics) RecordStrategiesCompared(n int) {
	if m == nil {
		return
	}
	m.StrategiesCompared.Add(float64(n))
}

// RecordCacheLookup records a hit or miss for an analysis.
func (m *Metrics) RecordCacheLookup(analysis string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(analysis).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(analysis).Inc()
}

// SetCacheEntries updates the cached results gauge.
func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

// RecordRefresh records a refresh run and its written points per kind
// ("index" or "fx").
func (m *Metrics) RecordRefresh(success bool, pointsByKind map[string]int) {
	if m == nil {
		return
	}
	status := "failed"
	if success {
		status = "success"
		m.LastRefresh.SetToCurrentTime()
	}
	m.RefreshRuns.WithLabelValues(status).Inc()
	for kind, n := range pointsByKind {
		m.RefreshPointsAdded.WithLabelValues(kind).Add(float64(n))
	}
}
