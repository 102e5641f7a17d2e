package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/testutil"
)

func TestIndexService_ListIndexes(t *testing.T) {
	t.Run("lists the seeded catalog", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestIndexService(t, db)

		indexes, err := svc.ListIndexes(context.Background())
		if err != nil {
			t.Fatalf("ListIndexes() returned unexpected error: %v", err)
		}

		if len(indexes) != len(testutil.SeededIndexCodes) {
			t.Fatalf("Expected %d indexes, got %d", len(testutil.SeededIndexCodes), len(indexes))
		}
		for i, code := range testutil.SeededIndexCodes {
			if indexes[i].Code != code {
				t.Errorf("Expected index %d to be %s, got %s", i, code, indexes[i].Code)
			}
			if indexes[i].DataPoints != 0 || indexes[i].StartDate != nil {
				t.Errorf("Expected %s without history, got %+v", code, indexes[i])
			}
		}
	})

	t.Run("includes custom indexes until the database is cleaned", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestIndexService(t, db)
		custom := testutil.NewIndex().WithCode("aaa_custom").Build(t, db)

		indexes, err := svc.ListIndexes(context.Background())
		if err != nil {
			t.Fatalf("ListIndexes() returned unexpected error: %v", err)
		}
		if len(indexes) != len(testutil.SeededIndexCodes)+1 || indexes[0].Code != custom.Code {
			t.Fatalf("Expected %s first among %d indexes, got %+v", custom.Code, len(testutil.SeededIndexCodes)+1, indexes)
		}

		testutil.CleanDatabase(t, db)

		indexes, err = svc.ListIndexes(context.Background())
		if err != nil {
			t.Fatalf("ListIndexes() returned unexpected error: %v", err)
		}
		if len(indexes) != len(testutil.SeededIndexCodes) {
			t.Errorf("Expected only the seeded catalog after cleaning, got %d indexes", len(indexes))
		}
	})

	t.Run("reports the span of stored history", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestIndexService(t, db)
		testutil.CreateMonthlyPrices(t, db, "sp500", testutil.Date(2020, 1, 1), 100, 101, 102)

		indexes, err := svc.ListIndexes(context.Background())
		if err != nil {
			t.Fatalf("ListIndexes() returned unexpected error: %v", err)
		}

		for _, index := range indexes {
			if index.Code != "sp500" {
				continue
			}
			if index.DataPoints != 3 {
				t.Errorf("Expected 3 data points, got %d", index.DataPoints)
			}
			if index.StartDate == nil || !index.StartDate.Equal(testutil.MonthEnd(2020, 1)) {
				t.Errorf("Expected start 2020-01-31, got %v", index.StartDate)
			}
			if index.EndDate == nil || !index.EndDate.Equal(testutil.MonthEnd(2020, 3)) {
				t.Errorf("Expected end 2020-03-31, got %v", index.EndDate)
			}
			return
		}
		t.Error("Expected sp500 in the list")
	})
}

func TestIndexService_GetIndexHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestIndexService(t, db)
	testutil.CreateMonthlyPrices(t, db, "msci_world", testutil.Date(2020, 1, 1), 100, 101, 102, 103)

	t.Run("returns the full history without a window", func(t *testing.T) {
		history, err := svc.GetIndexHistory(context.Background(), "msci_world", time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("GetIndexHistory() returned unexpected error: %v", err)
		}
		if history.Index.Name != "MSCI World" {
			t.Errorf("Expected MSCI World, got %s", history.Index.Name)
		}
		if len(history.Prices) != 4 {
			t.Errorf("Expected 4 prices, got %d", len(history.Prices))
		}
	})

	t.Run("limits the history to the window", func(t *testing.T) {
		history, err := svc.GetIndexHistory(context.Background(), "msci_world", testutil.Date(2020, 2, 1), testutil.Date(2020, 3, 31))
		if err != nil {
			t.Fatalf("GetIndexHistory() returned unexpected error: %v", err)
		}
		if len(history.Prices) != 2 {
			t.Fatalf("Expected 2 prices, got %d", len(history.Prices))
		}
		if history.Prices[0].ClosePrice != 101 {
			t.Errorf("Expected first close 101, got %v", history.Prices[0].ClosePrice)
		}
	})

	t.Run("returns an empty list for an index without data", func(t *testing.T) {
		history, err := svc.GetIndexHistory(context.Background(), "msci_em", time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("GetIndexHistory() returned unexpected error: %v", err)
		}
		if history.Prices == nil || len(history.Prices) != 0 {
			t.Errorf("Expected empty price list, got %v", history.Prices)
		}
	})

	t.Run("returns not found for an unknown index", func(t *testing.T) {
		_, err := svc.GetIndexHistory(context.Background(), "nikkei", time.Time{}, time.Time{})
		if !errors.Is(err, apperrors.ErrIndexNotFound) {
			t.Errorf("Expected ErrIndexNotFound, got %v", err)
		}
	})
}

func TestIndexService_SearchInstruments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestIndexService(t, db)

	small, large := 100.0, 5000.0
	testutil.NewInstrument("sp500").WithName("Vanguard S&P 500").WithFundSize(small).Build(t, db)
	testutil.NewInstrument("sp500").WithName("iShares Core S&P 500").WithFundSize(large).Build(t, db)
	world := testutil.NewInstrument("msci_world").WithISIN("IE00B4L5Y983").WithName("iShares Core MSCI World").Build(t, db)

	t.Run("matches by name ordered by fund size", func(t *testing.T) {
		results, err := svc.SearchInstruments(context.Background(), "s&p", 0)
		if err != nil {
			t.Fatalf("SearchInstruments() returned unexpected error: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Expected 2 results, got %d", len(results))
		}
		if results[0].Name != "iShares Core S&P 500" {
			t.Errorf("Expected the largest fund first, got %s", results[0].Name)
		}
	})

	t.Run("matches by ISIN", func(t *testing.T) {
		results, err := svc.SearchInstruments(context.Background(), "ie00b4l5y983", 0)
		if err != nil {
			t.Fatalf("SearchInstruments() returned unexpected error: %v", err)
		}
		if len(results) != 1 || results[0].ID != world.ID {
			t.Errorf("Expected the MSCI World ETF, got %+v", results)
		}
	})

	t.Run("matches by index code", func(t *testing.T) {
		results, err := svc.SearchInstruments(context.Background(), "msci_world", 0)
		if err != nil {
			t.Fatalf("SearchInstruments() returned unexpected error: %v", err)
		}
		if len(results) != 1 {
			t.Errorf("Expected 1 result, got %d", len(results))
		}
	})

	t.Run("returns nothing for short terms", func(t *testing.T) {
		results, err := svc.SearchInstruments(context.Background(), "i", 0)
		if err != nil {
			t.Fatalf("SearchInstruments() returned unexpected error: %v", err)
		}
		if results == nil || len(results) != 0 {
			t.Errorf("Expected empty result list, got %v", results)
		}
	})

	t.Run("applies the limit", func(t *testing.T) {
		results, err := svc.SearchInstruments(context.Background(), "ishares", 1)
		if err != nil {
			t.Fatalf("SearchInstruments() returned unexpected error: %v", err)
		}
		if len(results) != 1 {
			t.Errorf("Expected 1 result, got %d", len(results))
		}
	})

	t.Run("clamps an oversized limit", func(t *testing.T) {
		for range service.MaxSearchLimit + 5 {
			testutil.NewInstrument("msci_em").WithName(testutil.MakeFundName("Emerging")).Build(t, db)
		}

		results, err := svc.SearchInstruments(context.Background(), "emerging", 1000)
		if err != nil {
			t.Fatalf("SearchInstruments() returned unexpected error: %v", err)
		}
		if len(results) != service.MaxSearchLimit {
			t.Errorf("Expected %d results, got %d", service.MaxSearchLimit, len(results))
		}
	})
}
