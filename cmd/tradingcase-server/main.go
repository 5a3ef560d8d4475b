package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tradingcase/internal/api"
	"tradingcase/internal/backtest"
	"tradingcase/internal/backtest/backtestobs"
	"tradingcase/internal/config"
	"tradingcase/internal/marketdata"
	"tradingcase/internal/store"
	"tradingcase/internal/trace"
	"tradingcase/internal/util"
)

const defaultConfigPath = "config/tradingcase.yaml"

func main() {
	_ = godotenv.Load()

	cfgPath := defaultConfigPath
	if p := os.Getenv("TRADINGCASE_CONFIG"); p != "" {
		cfgPath = p
	} else if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		cfgPath = ""
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	if err := trace.Init(cfg.Tracing.Enabled, cfg.Tracing.ServiceName, api.Version); err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(ctx)
	}()

	var cache *store.ParquetStore
	if cfg.MarketData.Cache {
		cache = store.NewParquetStore(cfg.Storage.DataDir)
	}
	source, err := marketdata.NewSource(cfg, cache, logger)
	if err != nil {
		logger.Fatal("market data source", zap.Error(err))
	}

	var runs store.RunStore
	if cfg.Storage.SQLitePath != "" {
		sqlite, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			logger.Fatal("opening run history", zap.String("path", cfg.Storage.SQLitePath), zap.Error(err))
		}
		defer sqlite.Close()
		runs = sqlite
	}

	svc, err := backtest.NewService(backtest.ServiceOptions{
		Source:            source,
		Runs:              runs,
		Defaults:          backtest.ParamsFromConfig(cfg.Backtest),
		MaxConcurrentRuns: cfg.Backtest.MaxConcurrentRuns,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal("backtest service", zap.Error(err))
	}

	server := api.NewServer(cfg, backtestobs.Wrap(svc, logger), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("tradingcase-server starting",
		zap.String("config", cfgPath),
		zap.String("market_data", source.Name()),
		zap.Int("port", cfg.Server.Port),
		zap.Int("grpc_port", cfg.Server.GRPCPort),
	)
	if err := server.ListenAndServe(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("tradingcase-server stopped")
}
