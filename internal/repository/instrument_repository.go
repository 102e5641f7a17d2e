package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/model"
)

// InstrumentRepository provides data access methods for the instrument table.
type InstrumentRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewInstrumentRepository creates a new InstrumentRepository with the provided database connection.
func NewInstrumentRepository(db *sql.DB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

// WithTx returns a copy of the repository that runs its statements in tx.
func (r *InstrumentRepository) WithTx(tx *sql.Tx) *InstrumentRepository {
	return &InstrumentRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *InstrumentRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Search returns up to limit instruments whose name, ISIN or index code
// contains term, case-insensitively. Exact ISIN matches sort first, then
// larger funds.
func (r *InstrumentRepository) Search(ctx context.Context, term string, limit int) ([]model.Instrument, error) {
	like := "%" + strings.ToLower(term) + "%"

	query := `
		SELECT id, isin, name, ter, index_code, fund_size
		FROM instrument
		WHERE LOWER(name) LIKE ? OR LOWER(isin) LIKE ? OR LOWER(index_code) LIKE ?
		ORDER BY CASE WHEN UPPER(isin) = ? THEN 0 ELSE 1 END,
			COALESCE(fund_size, 0) DESC,
			name ASC
		LIMIT ?
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, like, like, like, strings.ToUpper(term), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query instrument table: %w", err)
	}
	defer rows.Close()

	return scanInstruments(rows)
}

// GetByISINs returns the instruments with the given ISINs keyed by ISIN.
// Unknown ISINs are absent from the map.
func (r *InstrumentRepository) GetByISINs(ctx context.Context, isins []string) (map[string]model.Instrument, error) {
	result := make(map[string]model.Instrument, len(isins))
	if len(isins) == 0 {
		return result, nil
	}

	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `
		SELECT id, isin, name, ter, index_code, fund_size
		FROM instrument
		WHERE isin IN (` + placeholders(len(isins)) + `)
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, stringArgs(isins)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instrument table: %w", err)
	}
	defer rows.Close()

	instruments, err := scanInstruments(rows)
	if err != nil {
		return nil, err
	}
	for _, inst := range instruments {
		result[inst.ISIN] = inst
	}
	return result, nil
}

// UpsertInstrument inserts the instrument or updates the existing row with the same ISIN.
func (r *InstrumentRepository) UpsertInstrument(ctx context.Context, inst model.Instrument) error {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}

	query := `
		INSERT INTO instrument (id, isin, name, ter, index_code, fund_size)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (isin) DO UPDATE SET
			name = excluded.name,
			ter = excluded.ter,
			index_code = excluded.index_code,
			fund_size = excluded.fund_size
	`

	_, err := r.getQuerier().ExecContext(ctx, query,
		inst.ID, inst.ISIN, inst.Name, inst.TER, inst.IndexCode, inst.FundSize)
	if err != nil {
		return fmt.Errorf("failed to upsert instrument %s: %w", inst.ISIN, err)
	}
	return nil
}

func scanInstruments(rows *sql.Rows) ([]model.Instrument, error) {
	instruments := []model.Instrument{}
	for rows.Next() {
		var inst model.Instrument
		var fundSize sql.NullFloat64

		if err := rows.Scan(&inst.ID, &inst.ISIN, &inst.Name, &inst.TER, &inst.IndexCode, &fundSize); err != nil {
			return nil, fmt.Errorf("failed to scan instrument results: %w", err)
		}
		if fundSize.Valid {
			inst.FundSize = &fundSize.Float64
		}
		instruments = append(instruments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instrument table: %w", err)
	}
	return instruments, nil
}
