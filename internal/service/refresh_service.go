package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/backtest"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/observability"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/repository"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/yahoo"
	"golang.org/x/sync/errgroup"
)

// refreshConcurrency bounds the number of Yahoo queries in flight.
const refreshConcurrency = 4

const (
	refreshKindIndex = "index"
	refreshKindFX    = "fx"
)

// RefreshService pulls daily index and currency histories from Yahoo Finance,
// reduces them to month-end closes and stores them.
type RefreshService struct {
	indexRepo       *repository.IndexRepository
	fxRepo          *repository.ExchangeRateRepository
	yahooClient     yahoo.Client
	backtestService *BacktestService
	metrics         *observability.Metrics
	cfg             config.RefreshConfig
	now             func() time.Time
}

// NewRefreshService creates a new RefreshService. backtestService and metrics may be nil.
func NewRefreshService(
	indexRepo *repository.IndexRepository,
	fxRepo *repository.ExchangeRateRepository,
	yahooClient yahoo.Client,
	backtestService *BacktestService,
	metrics *observability.Metrics,
	cfg config.RefreshConfig,
) *RefreshService {
	return &RefreshService{
		indexRepo:       indexRepo,
		fxRepo:          fxRepo,
		yahooClient:     yahooClient,
		backtestService: backtestService,
		metrics:         metrics,
		cfg:             cfg,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// refreshTarget is one series to pull: an index or a currency pair.
type refreshTarget struct {
	kind   string
	key    string
	symbol string
	from   string
	to     string
}

// Refresh updates every index with a Yahoo symbol and every configured
// currency pair, or the subset named in req.
//
// Refresh Strategy:
//   - Without req.Full a series is fetched from the first day of the month of
//     its latest stored point, so that month's close is corrected if it was
//     stored before the month ended
//   - An empty series, or req.Full, is fetched from the configured history start
//   - The current month is never stored since its close is not final
//   - A failing series is reported in the response and does not stop the others
//
// Returns apperrors.ErrIndexNotFound if req names an unknown index code.
func (s *RefreshService) Refresh(ctx context.Context, req request.RefreshRequest) (model.RefreshResponse, error) {
	targets, err := s.targets(ctx, req)
	if err != nil {
		return model.RefreshResponse{}, err
	}

	response := model.RefreshResponse{
		UpdatedSeries: []model.UpdatedSeries{},
		Errors:        []model.RefreshError{},
	}
	points := map[string]int{refreshKindIndex: 0, refreshKindFX: 0}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)

	for _, target := range targets {
		g.Go(func() error {
			added, err := s.refreshTarget(gctx, target, req.Full)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("Refresh of %s (%s) failed: %v", target.key, target.symbol, err)
				response.Errors = append(response.Errors, model.RefreshError{
					Key:    target.key,
					Symbol: target.symbol,
					Error:  err.Error(),
				})
				return nil
			}
			if added > 0 {
				response.UpdatedSeries = append(response.UpdatedSeries, model.UpdatedSeries{
					Key:         target.key,
					Symbol:      target.symbol,
					PointsAdded: added,
				})
				points[target.kind] += added
			}
			return nil
		})
	}
	// Every goroutine reports its own failure, so Wait only returns nil.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return model.RefreshResponse{}, err
	}

	sort.Slice(response.UpdatedSeries, func(i, j int) bool {
		return response.UpdatedSeries[i].Key < response.UpdatedSeries[j].Key
	})
	sort.Slice(response.Errors, func(i, j int) bool {
		return response.Errors[i].Key < response.Errors[j].Key
	})

	for _, u := range response.UpdatedSeries {
		response.TotalUpdated += u.PointsAdded
	}
	response.TotalErrors = len(response.Errors)
	response.Success = len(targets) == 0 || response.TotalErrors < len(targets)

	s.metrics.RecordRefresh(response.Success, points)
	if response.TotalUpdated > 0 && s.backtestService != nil {
		s.backtestService.InvalidateCache()
	}

	log.Printf("Market data refresh finished: %d points in %d series, %d errors",
		response.TotalUpdated, len(response.UpdatedSeries), response.TotalErrors)

	return response, nil
}

func (s *RefreshService) targets(ctx context.Context, req request.RefreshRequest) ([]refreshTarget, error) {
	indexes, err := s.indexRepo.GetRefreshable(ctx)
	if err != nil {
		return nil, err
	}

	var targets []refreshTarget

	wanted := make(map[string]bool, len(req.IndexCodes))
	for _, code := range req.IndexCodes {
		wanted[code] = true
	}
	for code := range wanted {
		if _, err := s.indexRepo.GetIndex(ctx, code); err != nil {
			return nil, err
		}
	}
	for _, index := range indexes {
		if len(wanted) > 0 && !wanted[index.Code] {
			continue
		}
		targets = append(targets, refreshTarget{
			kind:   refreshKindIndex,
			key:    index.Code,
			symbol: *index.YahooSymbol,
		})
	}

	pairs := s.cfg.FXPairs
	if len(req.FXPairs) > 0 {
		pairs = req.FXPairs
	} else if len(req.IndexCodes) > 0 {
		pairs = nil
	}
	seen := make(map[string]bool)
	for _, pair := range pairs {
		from, to, ok := splitPair(pair)
		if !ok {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidCurrency, pair)
		}
		key := from + "/" + to
		if seen[key] {
			continue
		}
		seen[key] = true
		targets = append(targets, refreshTarget{
			kind:   refreshKindFX,
			key:    key,
			symbol: yahoo.FXSymbol(from, to),
			from:   from,
			to:     to,
		})
	}

	return targets, nil
}

func (s *RefreshService) refreshTarget(ctx context.Context, target refreshTarget, full bool) (int, error) {
	now := s.now()
	start := s.cfg.HistoryStart
	if !full {
		latest, err := s.latestStored(ctx, target)
		if err != nil {
			return 0, err
		}
		if latest != nil {
			start = time.Date(latest.Year(), latest.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
	}

	currentMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if !start.Before(currentMonth) {
		return 0, nil
	}

	raw, err := s.yahooClient.QueryYahooSymbolByDateRange(ctx, target.symbol, start, now)
	if err != nil {
		return 0, err
	}
	chart, err := s.yahooClient.ParseChart(raw)
	if err != nil {
		return 0, err
	}

	observations := make([]backtest.Observation, 0, len(chart.Indicators))
	for _, ind := range chart.Indicators {
		if ind.Date.Before(currentMonth) {
			observations = append(observations, backtest.Observation{Date: ind.Date, Close: ind.PriceClose})
		}
	}
	monthEnds := backtest.ResampleMonthEnd(observations)
	if len(monthEnds) == 0 {
		return 0, nil
	}

	switch target.kind {
	case refreshKindFX:
		rates := make([]model.ExchangeRate, len(monthEnds))
		for i, o := range monthEnds {
			rates[i] = model.ExchangeRate{FromCurrency: target.from, ToCurrency: target.to, Rate: o.Close, Date: o.Date}
		}
		return s.fxRepo.UpsertExchangeRates(ctx, rates)
	default:
		prices := make([]model.IndexPrice, len(monthEnds))
		for i, o := range monthEnds {
			prices[i] = model.IndexPrice{IndexCode: target.key, Date: o.Date, ClosePrice: o.Close}
		}
		return s.indexRepo.UpsertPrices(ctx, prices)
	}
}

func (s *RefreshService) latestStored(ctx context.Context, target refreshTarget) (*time.Time, error) {
	if target.kind == refreshKindFX {
		return s.fxRepo.GetLatestDate(ctx, target.from, target.to)
	}
	return s.indexRepo.GetLatestPriceDate(ctx, target.key)
}

// splitPair splits "EUR/CZK" into its upper-cased currencies.
func splitPair(pair string) (from, to string, ok bool) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(pair)), "/")
	if len(parts) != 2 || len(parts[0]) != 3 || len(parts[1]) != 3 || parts[0] == parts[1] {
		return "", "", false
	}
	return parts[0], parts[1], true
}
