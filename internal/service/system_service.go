package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/database"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/version"
)

// SystemService handles system-related operations
type SystemService struct {
	db *sql.DB
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB) *SystemService {
	return &SystemService{
		db: db,
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth(ctx context.Context) error {
	return database.HealthCheck(ctx, s.db)
}

// CheckVersion reports the application version, the applied schema version
// and whether migrations are pending.
func (s *SystemService) CheckVersion(ctx context.Context) (model.VersionInfo, error) {
	provider, err := database.NewMigrationProvider(s.db)
	if err != nil {
		return model.VersionInfo{}, err
	}

	dbVersion, err := provider.GetDBVersion(ctx)
	if err != nil {
		return model.VersionInfo{}, fmt.Errorf("failed to read schema version: %w", err)
	}

	pending, err := provider.HasPending(ctx)
	if err != nil {
		return model.VersionInfo{}, fmt.Errorf("failed to check pending migrations: %w", err)
	}

	info := model.VersionInfo{
		AppVersion:      version.Version,
		DbVersion:       strconv.FormatInt(dbVersion, 10),
		Features:        version.Features(),
		MigrationNeeded: pending,
	}
	if pending {
		msg := "database schema is behind the application; restart to apply pending migrations"
		info.MigrationMessage = &msg
	}

	return info, nil
}
