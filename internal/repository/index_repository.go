package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/model"
)

// IndexRepository provides data access methods for the index_mapping and
// index_historical_data tables.
type IndexRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewIndexRepository creates a new IndexRepository with the provided database connection.
func NewIndexRepository(db *sql.DB) *IndexRepository {
	return &IndexRepository{db: db}
}

// WithTx returns a copy of the repository that runs its statements in tx.
func (r *IndexRepository) WithTx(tx *sql.Tx) *IndexRepository {
	return &IndexRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *IndexRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// ListIndexes returns every mapped index with the span of its stored history.
// Indexes without prices are included with nil dates and zero data points.
func (r *IndexRepository) ListIndexes(ctx context.Context) ([]model.IndexSummary, error) {
	query := `
		SELECT im.code, im.name, im.currency, MIN(ihd.date), MAX(ihd.date), COUNT(ihd.id)
		FROM index_mapping im
		LEFT JOIN index_historical_data ihd ON ihd.index_code = im.code
		GROUP BY im.code, im.name, im.currency
		ORDER BY im.code ASC
	`

	rows, err := r.getQuerier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query index_mapping table: %w", err)
	}
	defer rows.Close()

	indexes := []model.IndexSummary{}
	for rows.Next() {
		var s model.IndexSummary
		var startStr, endStr sql.NullString

		if err := rows.Scan(&s.Code, &s.Name, &s.Currency, &startStr, &endStr, &s.DataPoints); err != nil {
			return nil, fmt.Errorf("failed to scan index_mapping results: %w", err)
		}

		if startStr.Valid {
			start, err := ParseTime(startStr.String)
			if err != nil {
				return nil, err
			}
			s.StartDate = &start
		}
		if endStr.Valid {
			end, err := ParseTime(endStr.String)
			if err != nil {
				return nil, err
			}
			s.EndDate = &end
		}

		indexes = append(indexes, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index_mapping table: %w", err)
	}

	return indexes, nil
}

// GetIndex returns the mapping for code or apperrors.ErrIndexNotFound.
func (r *IndexRepository) GetIndex(ctx context.Context, code string) (model.IndexMapping, error) {
	query := `
		SELECT id, code, name, currency, yahoo_symbol
		FROM index_mapping
		WHERE code = ?
	`

	var im model.IndexMapping
	var symbol sql.NullString

	err := r.getQuerier().QueryRowContext(ctx, query, code).Scan(&im.ID, &im.Code, &im.Name, &im.Currency, &symbol)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.IndexMapping{}, apperrors.ErrIndexNotFound
		}
		return model.IndexMapping{}, fmt.Errorf("failed to query index_mapping table: %w", err)
	}
	if symbol.Valid {
		im.YahooSymbol = &symbol.String
	}

	return im, nil
}

// GetIndexes returns the mappings for the given codes keyed by code. Unknown
// codes are absent from the map.
func (r *IndexRepository) GetIndexes(ctx context.Context, codes []string) (map[string]model.IndexMapping, error) {
	result := make(map[string]model.IndexMapping, len(codes))
	if len(codes) == 0 {
		return result, nil
	}

	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `
		SELECT id, code, name, currency, yahoo_symbol
		FROM index_mapping
		WHERE code IN (` + placeholders(len(codes)) + `)
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, stringArgs(codes)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query index_mapping table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var im model.IndexMapping
		var symbol sql.NullString
		if err := rows.Scan(&im.ID, &im.Code, &im.Name, &im.Currency, &symbol); err != nil {
			return nil, fmt.Errorf("failed to scan index_mapping results: %w", err)
		}
		if symbol.Valid {
			im.YahooSymbol = &symbol.String
		}
		result[im.Code] = im
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index_mapping table: %w", err)
	}

	return result, nil
}

// GetRefreshable returns the indexes that have a Yahoo symbol configured.
func (r *IndexRepository) GetRefreshable(ctx context.Context) ([]model.IndexMapping, error) {
	query := `
		SELECT id, code, name, currency, yahoo_symbol
		FROM index_mapping
		WHERE yahoo_symbol IS NOT NULL AND yahoo_symbol != ''
		ORDER BY code ASC
	`

	rows, err := r.getQuerier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query index_mapping table: %w", err)
	}
	defer rows.Close()

	indexes := []model.IndexMapping{}
	for rows.Next() {
		var im model.IndexMapping
		var symbol string
		if err := rows.Scan(&im.ID, &im.Code, &im.Name, &im.Currency, &symbol); err != nil {
			return nil, fmt.Errorf("failed to scan index_mapping results: %w", err)
		}
		im.YahooSymbol = &symbol
		indexes = append(indexes, im)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index_mapping table: %w", err)
	}

	return indexes, nil
}

// GetPrices retrieves the stored closes of the given indexes within the
// inclusive date range, grouped by index code and sorted by date ascending.
func (r *IndexRepository) GetPrices(ctx context.Context, codes []string, startDate, endDate time.Time) (map[string][]model.IndexPrice, error) {
	if startDate.After(endDate) {
		return nil, fmt.Errorf("startDate (%s) must be before or equal to endDate (%s)",
			startDate.Format(dateLayout), endDate.Format(dateLayout))
	}

	pricesByIndex := make(map[string][]model.IndexPrice, len(codes))
	if len(codes) == 0 {
		return pricesByIndex, nil
	}

	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `
		SELECT id, index_code, date, close_price
		FROM index_historical_data
		WHERE index_code IN (` + placeholders(len(codes)) + `)
		AND date >= ?
		AND date <= ?
		ORDER BY index_code ASC, date ASC
	`

	args := stringArgs(codes)
	args = append(args, startDate.Format(dateLayout), endDate.Format(dateLayout))

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query index_historical_data table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.IndexPrice
		var dateStr string

		if err := rows.Scan(&p.ID, &p.IndexCode, &dateStr, &p.ClosePrice); err != nil {
			return nil, fmt.Errorf("failed to scan index_historical_data results: %w", err)
		}

		p.Date, err = ParseTime(dateStr)
		if err != nil {
			return nil, err
		}

		pricesByIndex[p.IndexCode] = append(pricesByIndex[p.IndexCode], p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index_historical_data table: %w", err)
	}

	return pricesByIndex, nil
}

// GetLatestPriceDate returns the date of the newest stored close of code, or
// nil when there is none.
func (r *IndexRepository) GetLatestPriceDate(ctx context.Context, code string) (*time.Time, error) {
	query := `SELECT MAX(date) FROM index_historical_data WHERE index_code = ?`

	var dateStr sql.NullString
	if err := r.getQuerier().QueryRowContext(ctx, query, code).Scan(&dateStr); err != nil {
		return nil, fmt.Errorf("failed to query index_historical_data table: %w", err)
	}
	if !dateStr.Valid {
		return nil, nil
	}

	date, err := ParseTime(dateStr.String)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

// UpsertPrices inserts the given closes, replacing the close of any date that
// is already stored. Returns the number of rows written.
func (r *IndexRepository) UpsertPrices(ctx context.Context, prices []model.IndexPrice) (int, error) {
	query := `
		INSERT INTO index_historical_data (id, index_code, date, close_price)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (index_code, date) DO UPDATE SET close_price = excluded.close_price
	`

	written := 0
	for _, p := range prices {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		result, err := r.getQuerier().ExecContext(ctx, query, id, p.IndexCode, p.Date.Format(dateLayout), p.ClosePrice)
		if err != nil {
			return written, fmt.Errorf("failed to upsert index price %s on %s: %w",
				p.IndexCode, p.Date.Format(dateLayout), err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return written, fmt.Errorf("failed to get rows affected: %w", err)
		}
		written += int(n)
	}

	return written, nil
}
