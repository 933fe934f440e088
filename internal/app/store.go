// Package app assembles the store and ledger from configuration for both binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"stockledger/internal/config"
	"stockledger/internal/ledger"
	"stockledger/internal/store"
	"stockledger/internal/store/flatfile"
	"stockledger/internal/store/memory"
	"stockledger/internal/store/postgres"
	"stockledger/internal/store/sqlite"
)

// OpenStore picks the backend named by cfg.StoreMode. An unreachable postgres
// falls back to the flat files so the operator still has a working ledger.
func OpenStore(cfg config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.StoreMode {
	case config.StoreMemory:
		return memory.NewStore(), nil
	case config.StoreSQLite:
		st, err := sqlite.NewStore(cfg.SQLiteFile())
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	case config.StorePostgres:
		if cfg.DatabaseURL != "" {
			st, err := postgres.NewStore(cfg.DatabaseURL)
			if err == nil {
				return st, nil
			}
			logger.Warn("postgres store unavailable, falling back to flat files", zap.Error(err))
		} else {
			logger.Warn("STORE_MODE=postgres without DATABASE_URL, falling back to flat files")
		}
		return openFlatFile(cfg)
	case config.StoreFlatFile, "":
		return openFlatFile(cfg)
	default:
		return nil, fmt.Errorf("unknown store mode %q", cfg.StoreMode)
	}
}

func openFlatFile(cfg config.Config) (store.Store, error) {
	st, err := flatfile.NewStore(flatfile.Paths{
		Balance:   cfg.BalancePath(),
		Warehouse: cfg.WarehousePath(),
		History:   cfg.HistoryPath(),
	})
	if err != nil {
		return nil, fmt.Errorf("open flat file store: %w", err)
	}
	return st, nil
}

// OpenLedger loads the ledger over st with the configured balance and currency.
func OpenLedger(ctx context.Context, cfg config.Config, st store.Store, logger *zap.Logger, observer ledger.Observer) *ledger.Ledger {
	return ledger.Open(ctx, st, logger, ledger.Settings{
		InitialBalance: cfg.StartingBalance(),
		Currency:       cfg.Currency,
		Observer:       observer,
	})
}
