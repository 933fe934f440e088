package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stockledger/internal/app"
	"stockledger/internal/config"
	apphttp "stockledger/internal/http"
	"stockledger/internal/logging"
	"stockledger/internal/metrics"
)

func main() {
	dotEnvErr := config.LoadDotEnv(".env")
	cfg, cfgErr := config.Load()

	logger := logging.New(cfg.LogLevel)
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
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	recorder := metrics.NewRecorder()
	ldg := app.OpenLedger(context.Background(), cfg, st, logger, recorder)
	recorder.Set(ldg.Balance(), ldg.StockTotal())

	srv := apphttp.NewServer(cfg, ldg, logger, recorder.Handler())

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("stockledger API listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("store", cfg.StoreMode),
			zap.Bool("auth", cfg.AuthEnabled()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
