package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/repository"
)

// Search limits for instrument lookups.
const (
	MinSearchLength    = 2
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50
)

// IndexService serves the index catalog and the instrument search.
type IndexService struct {
	indexRepo      *repository.IndexRepository
	instrumentRepo *repository.InstrumentRepository
}

// NewIndexService creates a new IndexService with the provided repositories.
func NewIndexService(
	indexRepo *repository.IndexRepository,
	instrumentRepo *repository.InstrumentRepository,
) *IndexService {
	return &IndexService{
		indexRepo:      indexRepo,
		instrumentRepo: instrumentRepo,
	}
}

// ListIndexes returns every index with the date range and size of its stored history.
func (s *IndexService) ListIndexes(ctx context.Context) ([]model.IndexSummary, error) {
	return s.indexRepo.ListIndexes(ctx)
}

// GetIndexHistory returns an index and its stored closes. A zero start or end
// leaves that side of the window open.
//
// Returns apperrors.ErrIndexNotFound if the index doesn't exist.
func (s *IndexService) GetIndexHistory(ctx context.Context, code string, start, end time.Time) (model.IndexHistory, error) {
	index, err := s.indexRepo.GetIndex(ctx, code)
	if err != nil {
		return model.IndexHistory{}, err
	}

	if start.IsZero() {
		start = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}

	prices, err := s.indexRepo.GetPrices(ctx, []string{code}, start, end)
	if err != nil {
		return model.IndexHistory{}, fmt.Errorf("failed to load history of %s: %w", code, err)
	}

	history := prices[code]
	if history == nil {
		history = []model.IndexPrice{}
	}
	return model.IndexHistory{Index: index, Prices: history}, nil
}

// SearchInstruments looks instruments up by name, ISIN or index code. Terms
// shorter than MinSearchLength return an empty list; limit is clamped to
// (0, MaxSearchLimit] with DefaultSearchLimit for non-positive values.
func (s *IndexService) SearchInstruments(ctx context.Context, term string, limit int) ([]model.Instrument, error) {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < MinSearchLength {
		return []model.Instrument{}, nil
	}

	switch {
	case limit <= 0:
		limit = DefaultSearchLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}

	instruments, err := s.instrumentRepo.Search(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	if instruments == nil {
		instruments = []model.Instrument{}
	}
	return instruments, nil
}
