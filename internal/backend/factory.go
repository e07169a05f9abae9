package backend

import (
	"context"
	"fmt"

	"ledgerq/internal/core"
	"ledgerq/internal/ledger/memory"
	"ledgerq/internal/log"
	"ledgerq/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	table  *core.CategoryTable
}

// NewFactory creates a new backend factory. The category table tags
// records read from a seed file.
func NewFactory(logger *log.Logger, table *core.CategoryTable) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	if table == nil {
		table = core.DefaultCategoryTable()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		table:  table,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if config.SeedFile == "" {
		f.logger.InfoContext(ctx, "Initialized memory backend")
		return &BackendResult{Store: memory.New(), Cleanup: noCleanup}, nil
	}
	store, err := memory.NewFromFile(config.SeedFile, f.table)
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory store: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized memory backend", "seed_file", config.SeedFile)
	return &BackendResult{Store: store, Cleanup: noCleanup}, nil
}

func noCleanup() error { return nil }
