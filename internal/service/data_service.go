package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/backtest"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/repository"
	"github.com/shopspring/decimal"
)

// DataService maintains the stored market data: single exchange rates and
// index closes, and bulk CSV imports of index history. Every write drops the
// cached backtest results.
type DataService struct {
	db              *sql.DB
	indexRepo       *repository.IndexRepository
	fxRepo          *repository.ExchangeRateRepository
	backtestService *BacktestService
}

// NewDataService creates a new DataService. backtestService may be nil.
func NewDataService(
	db *sql.DB,
	indexRepo *repository.IndexRepository,
	fxRepo *repository.ExchangeRateRepository,
	backtestService *BacktestService,
) *DataService {
	return &DataService{
		db:              db,
		indexRepo:       indexRepo,
		fxRepo:          fxRepo,
		backtestService: backtestService,
	}
}

// GetExchangeRate returns the stored rate of a pair on a date.
func (s *DataService) GetExchangeRate(ctx context.Context, from, to string, date time.Time) (model.ExchangeRate, error) {
	return s.fxRepo.GetExchangeRate(ctx, strings.ToUpper(from), strings.ToUpper(to), date)
}

// SetExchangeRate creates or replaces the rate of a pair on a date.
func (s *DataService) SetExchangeRate(ctx context.Context, req request.SetExchangeRateRequest) (model.ExchangeRate, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return model.ExchangeRate{}, fmt.Errorf("invalid date: %w", err)
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(req.Rate))
	if err != nil {
		return model.ExchangeRate{}, fmt.Errorf("invalid rate: %w", err)
	}

	er := model.ExchangeRate{
		FromCurrency: strings.ToUpper(req.FromCurrency),
		ToCurrency:   strings.ToUpper(req.ToCurrency),
		Rate:         rate.InexactFloat64(),
		Date:         date,
	}
	if _, err := s.fxRepo.UpsertExchangeRates(ctx, []model.ExchangeRate{er}); err != nil {
		return model.ExchangeRate{}, err
	}
	s.invalidate()

	return s.fxRepo.GetExchangeRate(ctx, er.FromCurrency, er.ToCurrency, date)
}

// SetIndexPrice creates or replaces the close of an index on a date.
func (s *DataService) SetIndexPrice(ctx context.Context, req request.SetIndexPriceRequest) (model.IndexPrice, error) {
	if _, err := s.indexRepo.GetIndex(ctx, req.IndexCode); err != nil {
		return model.IndexPrice{}, err
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return model.IndexPrice{}, fmt.Errorf("invalid date: %w", err)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil {
		return model.IndexPrice{}, fmt.Errorf("invalid price: %w", err)
	}

	p := model.IndexPrice{IndexCode: req.IndexCode, Date: date, ClosePrice: price.InexactFloat64()}
	if _, err := s.indexRepo.UpsertPrices(ctx, []model.IndexPrice{p}); err != nil {
		return model.IndexPrice{}, err
	}
	s.invalidate()

	prices, err := s.indexRepo.GetPrices(ctx, []string{req.IndexCode}, date, date)
	if err != nil {
		return model.IndexPrice{}, err
	}
	if len(prices[req.IndexCode]) == 0 {
		return model.IndexPrice{}, fmt.Errorf("index price %s on %s not stored", req.IndexCode, req.Date)
	}
	return prices[req.IndexCode][0], nil
}

// ImportIndexPrices reads a CSV with a header row naming "date" and "close"
// (or "price") columns, reduces the rows to month-end closes and upserts them
// in one transaction. Rows with an unparseable date or a non-positive close
// are skipped and counted. When the latest row falls before the last business
// day of its month, that month is incomplete and is not imported.
//
// Returns apperrors.ErrIndexNotFound for an unknown index and
// apperrors.ErrInvalidCSVHeaders when the header lacks the required columns.
func (s *DataService) ImportIndexPrices(ctx context.Context, indexCode string, r io.Reader) (model.ImportResult, error) {
	if _, err := s.indexRepo.GetIndex(ctx, indexCode); err != nil {
		return model.ImportResult{}, err
	}

	observations, skipped, err := parsePriceCSV(r)
	if err != nil {
		return model.ImportResult{}, err
	}

	observations, partialMonth := dropPartialMonth(observations)
	if partialMonth != "" {
		log.Printf("Import of %s: ignoring incomplete month %s", indexCode, partialMonth)
	}

	monthEnds := backtest.ResampleMonthEnd(observations)
	if len(monthEnds) == 0 {
		if partialMonth != "" {
			return model.ImportResult{}, fmt.Errorf("%w: only the incomplete month %s was given", apperrors.ErrNoData, partialMonth)
		}
		return model.ImportResult{}, fmt.Errorf("%w: no valid rows", apperrors.ErrNoData)
	}

	prices := make([]model.IndexPrice, len(monthEnds))
	for i, o := range monthEnds {
		prices[i] = model.IndexPrice{IndexCode: indexCode, Date: o.Date, ClosePrice: o.Close}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ImportResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := s.indexRepo.WithTx(tx).UpsertPrices(ctx, prices); err != nil {
		return model.ImportResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.ImportResult{}, fmt.Errorf("failed to commit import: %w", err)
	}
	s.invalidate()

	return model.ImportResult{
		IndexCode:    indexCode,
		Imported:     len(prices),
		Skipped:      skipped,
		PartialMonth: partialMonth,
	}, nil
}

// dropPartialMonth removes the rows of the latest month when none of them is
// on or after that month's last business day, and returns that month as
// "2006-01". Exchange holidays are not known: a month whose last weekday is a
// holiday counts as incomplete.
func dropPartialMonth(observations []backtest.Observation) ([]backtest.Observation, string) {
	if len(observations) == 0 {
		return observations, ""
	}

	latest := observations[0].Date
	for _, o := range observations[1:] {
		if o.Date.After(latest) {
			latest = o.Date
		}
	}
	if !latest.Before(lastBusinessDay(latest.Year(), latest.Month())) {
		return observations, ""
	}

	kept := make([]backtest.Observation, 0, len(observations))
	for _, o := range observations {
		if o.Date.Year() != latest.Year() || o.Date.Month() != latest.Month() {
			kept = append(kept, o)
		}
	}
	return kept, latest.Format("2006-01")
}

func lastBusinessDay(year int, month time.Month) time.Time {
	d := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func parsePriceCSV(r io.Reader) ([]backtest.Observation, int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("%w: empty file", apperrors.ErrInvalidCSVHeaders)
		}
		return nil, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	dateCol, closeCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))) {
		case "date":
			dateCol = i
		case "close", "price":
			if closeCol == -1 {
				closeCol = i
			}
		}
	}
	if dateCol == -1 || closeCol == -1 {
		return nil, 0, fmt.Errorf("%w: expected date and close columns, got %s",
			apperrors.ErrInvalidCSVHeaders, strings.Join(header, ","))
	}

	var observations []backtest.Observation
	skipped := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read CSV: %w", err)
		}
		if len(row) <= dateCol || len(row) <= closeCol {
			skipped++
			continue
		}

		date, err := time.Parse("2006-01-02", strings.TrimSpace(row[dateCol]))
		if err != nil {
			skipped++
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(row[closeCol]))
		if err != nil || !price.IsPositive() {
			skipped++
			continue
		}

		observations = append(observations, backtest.Observation{Date: date, Close: price.InexactFloat64()})
	}

	return observations, skipped, nil
}

func (s *DataService) invalidate() {
	if s.backtestService != nil {
		s.backtestService.InvalidateCache()
	}
}
