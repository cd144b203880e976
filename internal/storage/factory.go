package storage

import (
	"fmt"

	"apigate/internal/models"
)

// NewStorage instantiates a storage backend based on configuration.
// Supported backends:
//   - memory: in-memory storage (for testing/development)
//   - sqlite: SQLite database storage (single-node deployments)
//   - postgres: PostgreSQL database storage (production)
func NewStorage(cfg models.StorageConfig) (Storage, error) {
	storageConfig := Config{
		Type:             cfg.Type,
		ConnectionString: cfg.Database.DSN,
		MaxOpenConns:     cfg.Database.MaxOpenConns,
	}

	switch cfg.Type {
	case models.StorageTypeMemory:
		return NewMemoryStorage(storageConfig)
	case models.StorageTypeSQLite:
		return NewSQLiteStorage(storageConfig)
	case models.StorageTypePostgres:
		return NewPostgresStorage(storageConfig)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
