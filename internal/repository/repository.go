// Package repository persists projects. Every backend enforces the unique
// project name itself; callers may pre-check with ExistsByName but must still
// expect ErrConflict from Add.
package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"synapse-project-api/internal/config"
	"synapse-project-api/internal/database"
	"synapse-project-api/internal/logging"
	"synapse-project-api/internal/models"
)

// ProjectStore is implemented by every storage backend.
type ProjectStore interface {
	// Get returns the project with id or an error matching
	// apperrors.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	// List returns every project, most recently updated first.
	List(ctx context.Context) ([]*models.Project, error)
	// Add inserts p. A name collision yields apperrors.ErrConflict.
	Add(ctx context.Context, p *models.Project) error
	// ExistsByName reports whether a project with exactly this name exists.
	ExistsByName(ctx context.Context, name string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the backend selected by cfg.Driver, applying migrations first
// when cfg.AutoMigrate is set.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (ProjectStore, error) {
	switch cfg.Driver {
	case "", "memory":
		logger.Info("Using in-memory project storage")
		return NewMemoryRepository(), nil
	case database.DriverPostgres, database.DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	logger.Info("Connecting to project storage",
		zap.String("driver", cfg.Driver),
		zap.String("dsn", logging.SanitizeConnectionString(cfg.DSN)))

	if cfg.AutoMigrate {
		if err := database.RunMigrations(cfg.Driver, cfg.DSN, logger); err != nil {
			return nil, err
		}
	}

	db, err := database.Open(ctx, cfg.Driver, cfg.DSN, cfg.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == database.DriverSQLite {
		return NewSQLiteRepository(db), nil
	}
	return NewPostgresRepository(db), nil
}
