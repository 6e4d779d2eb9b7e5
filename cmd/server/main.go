// Package main is the entry point for the finport position enrichment and
// risk-scoring service. It joins raw watchlist positions with live market
// quotes, aggregates portfolio totals and allocation slices, computes
// technical indicators from price history, and scores position risk via an
// external prediction service.
//
// Startup sequence:
//  1. Load configuration from environment variables (.env in dev)
//  2. Initialize structured logging
//  3. Open the cache database and run migrations
//  4. Wire clients, repositories and services
//  5. Start the background refresh scheduler
//  6. Start the HTTP server and wait for a shutdown signal
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hsnsmii/finport/internal/clients/marketdata"
	"github.com/hsnsmii/finport/internal/clients/riskmodel"
	"github.com/hsnsmii/finport/internal/clients/watchlist"
	"github.com/hsnsmii/finport/internal/config"
	"github.com/hsnsmii/finport/internal/database"
	"github.com/hsnsmii/finport/internal/modules/aggregation"
	"github.com/hsnsmii/finport/internal/modules/enrichment"
	"github.com/hsnsmii/finport/internal/modules/pipeline"
	"github.com/hsnsmii/finport/internal/modules/quotecache"
	"github.com/hsnsmii/finport/internal/modules/risk"
	"github.com/hsnsmii/finport/internal/modules/snapshots"
	"github.com/hsnsmii/finport/internal/scheduler"
	"github.com/hsnsmii/finport/internal/server"
	"github.com/hsnsmii/finport/pkg/logger"
)

func main() {
	// Load configuration first to get the log level.
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting finport")

	// Cache database holds msgpack-encoded quotes and the snapshot history.
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	quoteRepo := quotecache.NewRepository(db.Conn(), log)
	snapshotRepo := snapshots.NewRepository(db.Conn(), log)

	// Outbound clients. Every quote lookup goes through the cache decorator,
	// and risk predictions sit behind a circuit breaker.
	positionClient := watchlist.NewClient(cfg.Sources.PositionSourceURL, cfg.HTTPTimeout, log)
	marketClient := marketdata.NewClient(cfg.Sources.QuoteSourceURL, cfg.Sources.HistorySourceURL, cfg.HTTPTimeout, log)
	riskClient := riskmodel.NewClient(cfg.Sources.RiskServiceURL, cfg.HTTPTimeout, log)

	cachedQuotes := quotecache.NewCachingSource(marketClient, quoteRepo, cfg.QuoteCacheTTL, log)

	enricher := enrichment.NewService(cachedQuotes, cfg.LookupConcurrency, log)
	riskService := risk.NewService(riskClient, log)

	state := pipeline.NewStateManager(log)
	runner := pipeline.NewRunner(
		positionClient,
		enricher,
		aggregation.Palette(cfg.AllocationPalette),
		state,
		snapshotRepo,
		log,
	)

	// Background refresh plus nightly cache and history pruning.
	sched := scheduler.New(runner, quoteRepo, snapshotRepo, cfg.DefaultWatchlistID, log)
	if err := sched.Start(cfg.RefreshCron); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		AppConfig:   cfg,
		Runner:      runner,
		History:     marketClient,
		RiskService: riskService,
		Snapshots:   snapshotRepo,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}
