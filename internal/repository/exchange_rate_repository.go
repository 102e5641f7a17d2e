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

// ExchangeRateRepository provides data access methods for the exchange_rate table.
type ExchangeRateRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewExchangeRateRepository creates a new ExchangeRateRepository with the provided database connection.
func NewExchangeRateRepository(db *sql.DB) *ExchangeRateRepository {
	return &ExchangeRateRepository{db: db}
}

// WithTx returns a copy of the repository that runs its statements in tx.
func (r *ExchangeRateRepository) WithTx(tx *sql.Tx) *ExchangeRateRepository {
	return &ExchangeRateRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *ExchangeRateRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetSeries returns the stored rates of the from/to pair up to and including
// endDate, sorted by date ascending. Rates before startDate are limited to the
// latest one so that a lookup on startDate can fall back to it.
func (r *ExchangeRateRepository) GetSeries(ctx context.Context, from, to string, startDate, endDate time.Time) ([]model.ExchangeRate, error) {
	query := `
		SELECT id, from_currency, to_currency, rate, date
		FROM exchange_rate
		WHERE from_currency = ? AND to_currency = ?
		AND date <= ?
		AND date >= COALESCE((
			SELECT MAX(date) FROM exchange_rate
			WHERE from_currency = ? AND to_currency = ? AND date <= ?
		), ?)
		ORDER BY date ASC
	`

	start := startDate.Format(dateLayout)
	rows, err := r.getQuerier().QueryContext(ctx, query,
		from, to, endDate.Format(dateLayout),
		from, to, start,
		start,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange_rate table: %w", err)
	}
	defer rows.Close()

	rates := []model.ExchangeRate{}
	for rows.Next() {
		var er model.ExchangeRate
		var dateStr string

		if err := rows.Scan(&er.ID, &er.FromCurrency, &er.ToCurrency, &er.Rate, &dateStr); err != nil {
			return nil, fmt.Errorf("failed to scan exchange_rate results: %w", err)
		}

		er.Date, err = ParseTime(dateStr)
		if err != nil {
			return nil, err
		}
		rates = append(rates, er)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exchange_rate table: %w", err)
	}

	return rates, nil
}

// GetExchangeRate returns the rate of the pair on exactly date or
// apperrors.ErrExchangeRateNotFound.
func (r *ExchangeRateRepository) GetExchangeRate(ctx context.Context, from, to string, date time.Time) (model.ExchangeRate, error) {
	query := `
		SELECT id, from_currency, to_currency, rate, date
		FROM exchange_rate
		WHERE from_currency = ? AND to_currency = ? AND date = ?
	`

	var er model.ExchangeRate
	var dateStr string

	err := r.getQuerier().QueryRowContext(ctx, query, from, to, date.Format(dateLayout)).
		Scan(&er.ID, &er.FromCurrency, &er.ToCurrency, &er.Rate, &dateStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ExchangeRate{}, apperrors.ErrExchangeRateNotFound
		}
		return model.ExchangeRate{}, fmt.Errorf("failed to query exchange_rate table: %w", err)
	}

	er.Date, err = ParseTime(dateStr)
	if err != nil {
		return model.ExchangeRate{}, err
	}
	return er, nil
}

// GetLatestDate returns the date of the newest stored rate of the pair, or nil.
func (r *ExchangeRateRepository) GetLatestDate(ctx context.Context, from, to string) (*time.Time, error) {
	query := `SELECT MAX(date) FROM exchange_rate WHERE from_currency = ? AND to_currency = ?`

	var dateStr sql.NullString
	if err := r.getQuerier().QueryRowContext(ctx, query, from, to).Scan(&dateStr); err != nil {
		return nil, fmt.Errorf("failed to query exchange_rate table: %w", err)
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

// UpsertExchangeRates inserts the given rates, replacing any rate already
// stored for the same pair and date. Returns the number of rows written.
func (r *ExchangeRateRepository) UpsertExchangeRates(ctx context.Context, rates []model.ExchangeRate) (int, error) {
	query := `
		INSERT INTO exchange_rate (id, from_currency, to_currency, rate, date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (from_currency, to_currency, date) DO UPDATE SET rate = excluded.rate
	`

	written := 0
	for _, er := range rates {
		id := er.ID
		if id == "" {
			id = uuid.New().String()
		}
		result, err := r.getQuerier().ExecContext(ctx, query,
			id, er.FromCurrency, er.ToCurrency, er.Rate, er.Date.Format(dateLayout))
		if err != nil {
			return written, fmt.Errorf("failed to upsert exchange rate %s/%s on %s: %w",
				er.FromCurrency, er.ToCurrency, er.Date.Format(dateLayout), err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return written, fmt.Errorf("failed to get rows affected: %w", err)
		}
		written += int(n)
	}

	return written, nil
}
