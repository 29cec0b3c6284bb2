package store

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-care-keeper/internal/config"
	"github.com/MKhiriev/go-care-keeper/internal/logger"
)

// MemoryDSN selects the in-memory [Medium] instead of SQLite.
const MemoryDSN = "memory"

// ClientStorages groups the client-side persistence backends into a single
// value that can be passed around the service layer.
type ClientStorages struct {
	// Medium is the durable key-value store every encrypted record,
	// sync queue entry and the install salt live in.
	Medium Medium
}

// NewClientStorages initialises the client storage layer:
//  1. Opens an SQLite connection to cfg.DB.DSN, creating the database file if
//     it does not yet exist (or an in-memory medium for [MemoryDSN]).
//  2. Runs pending schema migrations via [DB.Migrate].
//  3. Wires a [Medium] on top of the kv_entries table.
//
// Returns an error wrapping [ErrStorageUnavailable] if the database cannot be
// opened or migrated.
func NewClientStorages(ctx context.Context, cfg config.ClientStorage, logger *logger.Logger) (*ClientStorages, error) {
	logger.Info().Msg("creating new storages...")

	if cfg.DB.DSN == MemoryDSN {
		logger.Warn().Msg("using in-memory storage: local data will not survive a restart")
		return &ClientStorages{Medium: NewMemoryMedium()}, nil
	}

	db, err := NewConnectSQLite(ctx, cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err = db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &ClientStorages{
		Medium: NewLocalKVRepository(db, logger),
	}, nil
}

// Close releases every backend held by s.
func (s *ClientStorages) Close() error {
	if s == nil || s.Medium == nil {
		return nil
	}
	return s.Medium.Close()
}
