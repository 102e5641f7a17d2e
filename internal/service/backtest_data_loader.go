package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/backtest"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DataLoaderService centralizes the loading of everything a backtest needs:
// index mappings, catalog entries, index price histories and the FX series
// that convert them into the display currency.
type DataLoaderService struct {
	indexRepo      *repository.IndexRepository
	instrumentRepo *repository.InstrumentRepository
	fxRepo         *repository.ExchangeRateRepository
}

// NewDataLoaderService creates a new DataLoaderService with the provided repositories.
func NewDataLoaderService(
	indexRepo *repository.IndexRepository,
	instrumentRepo *repository.InstrumentRepository,
	fxRepo *repository.ExchangeRateRepository,
) *DataLoaderService {
	return &DataLoaderService{
		indexRepo:      indexRepo,
		instrumentRepo: instrumentRepo,
		fxRepo:         fxRepo,
	}
}

// PortfolioData is the loaded input of one backtest, in request order.
//
// Fields:
//   - Instruments: price histories in native currency, one per portfolio item
//   - Weights, TERs: target allocation and expense ratios, index-aligned with Instruments
//   - FX: rate series for every native currency that differs from Currency
type PortfolioData struct {
	Instruments []backtest.Instrument
	Weights     []float64
	TERs        []float64
	FX          backtest.FXTable
	Currency    string
	Start       time.Time
	End         time.Time
}

// Normalize aligns the loaded histories onto the month-end grid of the window
// in the display currency.
func (d *PortfolioData) Normalize() (*backtest.AlignedSeries, error) {
	return backtest.Normalize(d.Instruments, backtest.NormalizeOptions{
		Start:    d.Start,
		End:      d.End,
		Currency: d.Currency,
		FX:       d.FX,
	})
}

// LoadForPortfolio loads the data for items over [start, end] in currency.
//
// Data Loading Strategy:
//   - Index mappings and catalog entries are resolved first; an unknown index
//     code fails with apperrors.ErrIndexNotFound before any price is read
//   - Prices are read from the first day of the start month so the month-end
//     resampler sees every observation of that month
//   - Price histories and FX series are loaded concurrently
//
// A portfolio item without a TER takes the catalog TER of its ISIN, or 0.
func (s *DataLoaderService) LoadForPortfolio(
	ctx context.Context,
	items []request.PortfolioItem,
	start, end time.Time,
	currency string,
) (*PortfolioData, error) {
	codes := make([]string, 0, len(items))
	isins := make([]string, 0, len(items))
	seenCode := make(map[string]bool)
	for _, item := range items {
		if !seenCode[item.IndexCode] {
			seenCode[item.IndexCode] = true
			codes = append(codes, item.IndexCode)
		}
		if item.ISIN != "" {
			isins = append(isins, strings.ToUpper(item.ISIN))
		}
	}

	indexes, err := s.indexRepo.GetIndexes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to load index mappings: %w", err)
	}
	for _, code := range codes {
		if _, ok := indexes[code]; !ok {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, code)
		}
	}

	catalog, err := s.instrumentRepo.GetByISINs(ctx, isins)
	if err != nil {
		return nil, fmt.Errorf("failed to load instruments: %w", err)
	}

	priceStart := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	nativeCurrencies := make(map[string]bool)
	for _, im := range indexes {
		if !strings.EqualFold(im.Currency, currency) {
			nativeCurrencies[strings.ToUpper(im.Currency)] = true
		}
	}

	var prices map[string][]model.IndexPrice
	fx := make(backtest.FXTable)
	fxSeries := make([]backtest.FXSeries, 0, 2*len(nativeCurrencies))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prices, err = s.indexRepo.GetPrices(gctx, codes, priceStart, end)
		if err != nil {
			return fmt.Errorf("failed to load index prices: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		for _, native := range sortedKeys(nativeCurrencies) {
			for _, pair := range [][2]string{{native, currency}, {currency, native}} {
				series, err := s.loadFXSeries(gctx, pair[0], pair[1], start, end)
				if err != nil {
					return err
				}
				if len(series.Rates) > 0 {
					fxSeries = append(fxSeries, series)
				}
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, series := range fxSeries {
		fx.Add(series)
	}

	data := &PortfolioData{
		Instruments: make([]backtest.Instrument, len(items)),
		Weights:     make([]float64, len(items)),
		TERs:        make([]float64, len(items)),
		FX:          fx,
		Currency:    currency,
		Start:       start,
		End:         end,
	}

	for i, item := range items {
		im := indexes[item.IndexCode]
		entry, inCatalog := catalog[strings.ToUpper(item.ISIN)]

		name := item.Name
		if name == "" && inCatalog {
			name = entry.Name
		}
		if name == "" && item.ISIN == "" {
			name = im.Name
		}

		observations := make([]backtest.Observation, len(prices[item.IndexCode]))
		for j, p := range prices[item.IndexCode] {
			observations[j] = backtest.Observation{Date: p.Date, Close: p.ClosePrice}
		}

		data.Instruments[i] = backtest.Instrument{
			Code:         item.IndexCode,
			ISIN:         item.ISIN,
			Name:         name,
			Currency:     strings.ToUpper(im.Currency),
			Observations: observations,
		}
		data.Weights[i] = item.Weight

		switch {
		case item.TER != nil:
			data.TERs[i] = *item.TER
		case inCatalog:
			data.TERs[i] = entry.TER
		}
	}

	return data, nil
}

func (s *DataLoaderService) loadFXSeries(ctx context.Context, from, to string, start, end time.Time) (backtest.FXSeries, error) {
	rates, err := s.fxRepo.GetSeries(ctx, from, to, start, end)
	if err != nil {
		return backtest.FXSeries{}, fmt.Errorf("failed to load exchange rates %s/%s: %w", from, to, err)
	}

	series := backtest.FXSeries{From: from, To: to, Rates: make([]backtest.FXRate, len(rates))}
	for i, r := range rates {
		series.Rates[i] = backtest.FXRate{Date: r.Date, Rate: r.Rate}
	}
	return series, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
