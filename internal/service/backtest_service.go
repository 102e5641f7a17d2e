package service

import (
	"context"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/backtest"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/cache"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Analysis kinds used for cache keys and metrics labels.
const (
	kindSimulate    = "simulate"
	kindRebalancing = "rebalancing"
	kindMonteCarlo  = "monte_carlo"
	kindCorrelation = "correlation"
	kindAnalyze     = "analyze"
)

// mcStartStrategy is the strategy of the historical run whose final value
// seeds a Monte Carlo projection.
const mcStartStrategy = backtest.StrategyYearly

// SimulationResult is the evolution of a portfolio with its full analysis.
type SimulationResult struct {
	Evolution []backtest.EvolutionPoint `json:"evolution"`
	backtest.Analysis
	Currency            string            `json:"currency"`
	RebalancingStrategy backtest.Strategy `json:"rebalancingStrategy"`
}

// AnalysisResult joins every analysis of one portfolio. Correlation is nil
// for single-instrument portfolios.
type AnalysisResult struct {
	Simulation  *SimulationResult           `json:"simulation"`
	Rebalancing *backtest.Comparison        `json:"rebalancing"`
	MonteCarlo  *backtest.Projection        `json:"monteCarlo"`
	Correlation *backtest.CorrelationMatrix `json:"correlation"`
}

// BacktestService runs backtests over stored index histories. Results of
// deterministic requests are cached by request fingerprint; Monte Carlo
// results only when the request carries a seed.
type BacktestService struct {
	loader  *DataLoaderService
	results *cache.Cache[any]
	metrics *observability.Metrics
	cfg     config.BacktestConfig
}

// NewBacktestService creates a new BacktestService. results and metrics may be nil.
func NewBacktestService(
	loader *DataLoaderService,
	cfg config.BacktestConfig,
	results *cache.Cache[any],
	metrics *observability.Metrics,
) *BacktestService {
	return &BacktestService{
		loader:  loader,
		results: results,
		metrics: metrics,
		cfg:     cfg,
	}
}

// Simulate runs the portfolio through the requested window and strategy and
// analyzes the resulting trajectory.
func (s *BacktestService) Simulate(ctx context.Context, req request.BacktestRequest) (*SimulationResult, error) {
	req = s.withDefaults(req)
	return cached(s, kindSimulate, req, true, func() (*SimulationResult, error) {
		data, series, err := s.prepare(ctx, req.Portfolio, req.StartDate, req.EndDate, req.Currency)
		if err != nil {
			return nil, err
		}
		return s.simulate(series, data, req)
	})
}

// CompareRebalancing simulates the portfolio once per strategy and ranks the
// strategies by CAGR.
func (s *BacktestService) CompareRebalancing(ctx context.Context, req request.RebalancingRequest) (*backtest.Comparison, error) {
	req.BacktestRequest = s.withDefaults(req.BacktestRequest)
	return cached(s, kindRebalancing, req, true, func() (*backtest.Comparison, error) {
		data, series, err := s.prepare(ctx, req.Portfolio, req.StartDate, req.EndDate, req.Currency)
		if err != nil {
			return nil, err
		}
		return s.compare(ctx, series, data, req.BacktestRequest, req.Strategies, req.IncludeEvolution)
	})
}

// MonteCarlo projects the portfolio forward from the final value of its
// historical yearly-rebalanced simulation.
func (s *BacktestService) MonteCarlo(ctx context.Context, req request.MonteCarloRequest) (*backtest.Projection, error) {
	req = s.withProjectionDefaults(req)
	return cached(s, kindMonteCarlo, req, req.Seed != nil, func() (*backtest.Projection, error) {
		data, series, err := s.prepare(ctx, req.Portfolio, req.StartDate, req.EndDate, req.Currency)
		if err != nil {
			return nil, err
		}
		return s.project(ctx, series, data, req)
	})
}

// Correlation computes the pairwise return correlation of the instruments.
// Fewer than two instruments fail before any data is loaded.
func (s *BacktestService) Correlation(ctx context.Context, req request.CorrelationRequest) (*backtest.CorrelationMatrix, error) {
	if len(req.Portfolio) < 2 {
		return nil, &backtest.InsufficientInstrumentsError{Count: len(req.Portfolio), Required: 2}
	}
	req.Currency = s.currency(req.Currency)

	return cached(s, kindCorrelation, req, true, func() (*backtest.CorrelationMatrix, error) {
		_, series, err := s.prepare(ctx, req.Portfolio, req.StartDate, req.EndDate, req.Currency)
		if err != nil {
			return nil, err
		}
		return s.correlate(series)
	})
}

// Analyze normalizes the portfolio once and runs the simulation, the
// strategy comparison, the Monte Carlo projection and the correlation
// concurrently over the shared series. The first failure cancels the rest.
func (s *BacktestService) Analyze(ctx context.Context, req request.AnalyzeRequest) (*AnalysisResult, error) {
	req.MonteCarloRequest = s.withProjectionDefaults(req.MonteCarloRequest)
	return cached(s, kindAnalyze, req, req.Seed != nil, func() (*AnalysisResult, error) {
		data, series, err := s.prepare(ctx, req.Portfolio, req.StartDate, req.EndDate, req.Currency)
		if err != nil {
			return nil, err
		}

		result := &AnalysisResult{}
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			var err error
			result.Simulation, err = s.simulate(series, data, req.BacktestRequest)
			return err
		})
		g.Go(func() error {
			var err error
			result.Rebalancing, err = s.compare(gctx, series, data, req.BacktestRequest, req.Strategies, false)
			return err
		})
		g.Go(func() error {
			var err error
			result.MonteCarlo, err = s.project(gctx, series, data, req.MonteCarloRequest)
			return err
		})
		if len(series.Names) >= 2 {
			g.Go(func() error {
				var err error
				result.Correlation, err = s.correlate(series)
				return err
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return result, nil
	})
}

// prepare loads and normalizes the portfolio for the window.
func (s *BacktestService) prepare(
	ctx context.Context,
	items []request.PortfolioItem,
	startDate, endDate, currency string,
) (*PortfolioData, *backtest.AlignedSeries, error) {
	if len(items) == 0 {
		return nil, nil, &backtest.InputValidationError{
			Fields: map[string]string{"portfolio": "portfolio must contain at least one instrument"},
		}
	}

	start, err := parseDate("startDate", startDate)
	if err != nil {
		return nil, nil, err
	}
	end, err := parseDate("endDate", endDate)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.loader.LoadForPortfolio(ctx, items, start, end, currency)
	if err != nil {
		return nil, nil, err
	}

	series, err := data.Normalize()
	if err != nil {
		return nil, nil, err
	}
	return data, series, nil
}

func (s *BacktestService) simulate(series *backtest.AlignedSeries, data *PortfolioData, req request.BacktestRequest) (*SimulationResult, error) {
	started := time.Now()

	params, err := s.simulationParams(data, req)
	if err != nil {
		return nil, err
	}

	traj, err := backtest.Simulate(series, params)
	s.metrics.RecordBacktest(kindSimulate, time.Since(started), err)
	if err != nil {
		return nil, err
	}

	opts := backtest.AnalyticsOptions{
		RiskFreeRate:    s.cfg.RiskFreeRate,
		InflationRate:   s.cfg.InflationRate,
		MaxHorizonYears: s.cfg.MaxHorizonYears,
	}
	if req.InflationRate != nil {
		opts.InflationRate = *req.InflationRate
	}

	analysis := backtest.Analyze(traj, opts)
	analysis.Summary.AmountInvested = roundMoney(analysis.Summary.AmountInvested)
	analysis.Summary.NetAssetValue = roundMoney(analysis.Summary.NetAssetValue)
	analysis.Inflation.RealFinalValue = roundMoney(analysis.Inflation.RealFinalValue)
	analysis.Inflation.Evolution = roundEvolution(analysis.Inflation.Evolution)

	return &SimulationResult{
		Evolution:           roundEvolution(traj.Points),
		Analysis:            *analysis,
		Currency:            series.Currency,
		RebalancingStrategy: params.Strategy,
	}, nil
}

func (s *BacktestService) compare(
	ctx context.Context,
	series *backtest.AlignedSeries,
	data *PortfolioData,
	req request.BacktestRequest,
	rawStrategies []string,
	includeEvolution bool,
) (*backtest.Comparison, error) {
	started := time.Now()

	params, err := s.simulationParams(data, req)
	if err != nil {
		return nil, err
	}

	strategies := make([]backtest.Strategy, 0, len(rawStrategies))
	for _, raw := range rawStrategies {
		strategy, err := backtest.ParseStrategy(raw)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, strategy)
	}

	comparison, err := backtest.CompareStrategies(ctx, series, params, backtest.CompareOptions{
		Strategies:       strategies,
		IncludeEvolution: includeEvolution,
	})
	s.metrics.RecordBacktest(kindRebalancing, time.Since(started), err)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordStrategiesCompared(len(comparison.Strategies))

	for i := range comparison.Strategies {
		r := &comparison.Strategies[i]
		if r.Error != "" {
			log.Printf("Strategy %s failed: %s", r.Strategy, r.Error)
		}
		r.FinalValue = roundMoney(r.FinalValue)
		if r.Evolution != nil {
			r.Evolution = roundEvolution(r.Evolution)
		}
	}
	return comparison, nil
}

func (s *BacktestService) project(
	ctx context.Context,
	series *backtest.AlignedSeries,
	data *PortfolioData,
	req request.MonteCarloRequest,
) (*backtest.Projection, error) {
	started := time.Now()

	historical := req.BacktestRequest
	historical.RebalancingStrategy = string(mcStartStrategy)
	params, err := s.simulationParams(data, historical)
	if err != nil {
		return nil, err
	}
	traj, err := backtest.Simulate(series, params)
	if err != nil {
		return nil, err
	}

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	//nolint:gosec // G404: projection sampling, not security sensitive
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))

	projection, err := backtest.ProjectMonteCarlo(ctx, series, data.Weights, data.TERs, backtest.MonteCarloParams{
		StartValue: traj.FinalValue(),
		Months:     req.ForecastYears * 12,
		Paths:      req.Simulations,
		Rand:       rng,
	})
	s.metrics.RecordBacktest(kindMonteCarlo, time.Since(started), err)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordMonteCarloPaths(projection.Paths)

	for i := range projection.Points {
		p := &projection.Points[i]
		p.Percentile5 = roundMoney(p.Percentile5)
		p.Percentile16 = roundMoney(p.Percentile16)
		p.Percentile50 = roundMoney(p.Percentile50)
		p.Percentile84 = roundMoney(p.Percentile84)
		p.Percentile95 = roundMoney(p.Percentile95)
	}
	projection.Stats.CurrentValue = roundMoney(projection.Stats.CurrentValue)
	fv := &projection.FinalValues
	fv.VeryBad, fv.Bad, fv.Average = roundMoney(fv.VeryBad), roundMoney(fv.Bad), roundMoney(fv.Average)
	fv.Good, fv.Great = roundMoney(fv.Good), roundMoney(fv.Great)

	return projection, nil
}

func (s *BacktestService) correlate(series *backtest.AlignedSeries) (*backtest.CorrelationMatrix, error) {
	started := time.Now()
	matrix, err := backtest.Correlate(series)
	s.metrics.RecordBacktest(kindCorrelation, time.Since(started), err)
	return matrix, err
}

// simulationParams converts the request into engine parameters.
func (s *BacktestService) simulationParams(data *PortfolioData, req request.BacktestRequest) (backtest.SimulationParams, error) {
	strategy, err := backtest.ParseStrategy(req.RebalancingStrategy)
	if err != nil {
		return backtest.SimulationParams{}, err
	}

	params := backtest.SimulationParams{
		Weights:       data.Weights,
		TERs:          data.TERs,
		InitialAmount: req.InitialAmount,
		Strategy:      strategy,
	}

	if c := req.Contributions; c != nil {
		frequency, err := backtest.ParseFrequency(c.Frequency)
		if err != nil {
			return backtest.SimulationParams{}, &backtest.InputValidationError{
				Fields: map[string]string{"contributions.frequency": err.Error()},
			}
		}
		params.Contributions = &backtest.ContributionSchedule{Amount: c.Amount, Frequency: frequency}
	}

	return params, nil
}

func (s *BacktestService) withDefaults(req request.BacktestRequest) request.BacktestRequest {
	req.Currency = s.currency(req.Currency)
	if strings.TrimSpace(req.RebalancingStrategy) == "" {
		req.RebalancingStrategy = string(backtest.StrategyYearly)
	}
	return req
}

func (s *BacktestService) withProjectionDefaults(req request.MonteCarloRequest) request.MonteCarloRequest {
	req.BacktestRequest = s.withDefaults(req.BacktestRequest)
	if req.ForecastYears == 0 {
		req.ForecastYears = s.cfg.DefaultForecastYear
	}
	if req.Simulations == 0 {
		req.Simulations = s.cfg.MonteCarloPaths
	}
	return req
}

func (s *BacktestService) currency(raw string) string {
	if c := strings.ToUpper(strings.TrimSpace(raw)); c != "" {
		return c
	}
	return strings.ToUpper(s.cfg.DefaultCurrency)
}

// PurgeExpired reports how many cached results expired since the last call.
// The cache sweeps expired entries on its own.
func (s *BacktestService) PurgeExpired() int {
	if s.results == nil {
		return 0
	}
	removed := s.results.Purge()
	s.metrics.SetCacheEntries(s.results.Len())
	return removed
}

// InvalidateCache drops every cached result. Called after stored prices or
// rates change.
func (s *BacktestService) InvalidateCache() {
	if s.results == nil {
		return
	}
	s.results.Clear()
	s.metrics.SetCacheEntries(0)
}

// cached returns the cached result of kind for inputs, or computes, stores
// and returns it. Failed computations are never cached.
func cached[T any](s *BacktestService, kind string, inputs any, cacheable bool, compute func() (*T, error)) (*T, error) {
	if s.results == nil || !cacheable {
		return compute()
	}

	key, err := fingerprint(kind, inputs)
	if err != nil {
		log.Printf("Skipping result cache: %v", err)
		return compute()
	}

	if v, ok := s.results.Get(key); ok {
		if result, ok := v.(*T); ok {
			s.metrics.RecordCacheLookup(kind, true)
			return result, nil
		}
	}
	s.metrics.RecordCacheLookup(kind, false)

	gen := s.results.Generation()
	result, err := compute()
	if err != nil {
		return nil, err
	}

	// A result computed from data that changed meanwhile is returned but not kept.
	if s.results.SetIfGeneration(gen, key, result) {
		s.metrics.SetCacheEntries(s.results.Len())
	}
	return result, nil
}
