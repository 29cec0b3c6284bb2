package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/migrations"
)

// DB wraps the SQLite connection pool used by the local repositories.
type DB struct {
	*sql.DB
	logger *logger.Logger
}

// Migrate applies pending schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	applied, err := migrations.Migrate(ctx, db.DB)
	if err != nil {
		db.logger.Err(err).Str("func", "DB.Migrate").Msg("failed to migrate local database")
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	db.logger.Info().Int("applied", applied).Msg("local database migrated")
	return nil
}
