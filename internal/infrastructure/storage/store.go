package storage

import (
	"context"
	"fmt"

	"github.com/vitos/binary_mg_bot/internal/domain"
	"go.uber.org/zap"
)

// Open returns the ledger store selected by driver: sqlite, postgres, jsonl or memory.
func Open(ctx context.Context, driver, path, dsn string, logger *zap.Logger) (domain.LedgerStore, error) {
	var (
		store domain.LedgerStore
		err   error
	)
	switch driver {
	case "", "sqlite":
		store, err = NewSQLiteStore(path)
	case "postgres":
		store, err = NewPostgresStore(ctx, dsn)
	case "jsonl":
		store, err = NewJSONLStore(path, logger)
	case "memory":
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", domain.ErrInvalidConfig, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", driver, err)
	}
	return store, nil
}
