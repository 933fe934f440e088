package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"stockledger/internal/app"
	"stockledger/internal/cli"
	"stockledger/internal/config"
	"stockledger/internal/logging"
)

func main() {
	dataDir := flag.String("data-dir", "", "directory holding the ledger files (overrides DATA_DIR)")
	storeMode := flag.String("store", "", "store backend: flatfile, memory, sqlite or postgres (overrides STORE_MODE)")
	flag.Parse()

	dotEnvErr := config.LoadDotEnv(".env")
	cfg, cfgErr := config.Load()
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *storeMode != "" {
		cfg.StoreMode = *storeMode
	}

	logger := logging.NewWithWriter(cfg.LogLevel, os.Stderr)
	defer func() { _ = logger.Sync() }()
	if dotEnvErr != nil {
		logger.Warn("failed to load .env", zap.Error(dotEnvErr))
	}
	if cfgErr != nil {
		logger.Warn("config file ignored", zap.Error(cfgErr))
	}

	st, err := app.OpenStore(cfg, logger)
	if err != nil {
		logger.Fatal("store unavailable", zap.Error(err))
	}
	defer st.Close()

	// Ctrl-C keeps its default behaviour: every mutation is already on disk.
	ctx := context.Background()
	ldg := app.OpenLedger(ctx, cfg, st, logger, nil)
	fmt.Printf("Balance: %s %s, %d products in the warehouse, %d operations in the history.\n",
		ldg.Balance(), ldg.Currency(), len(ldg.Items()), ldg.HistoryLen())

	if err := cli.New(ldg, os.Stdin, os.Stdout).Run(ctx); err != nil {
		logger.Error("command loop stopped", zap.Error(err))
	}
}
