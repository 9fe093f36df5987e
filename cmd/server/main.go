// Package main is the entry point for the stresslab service: a portfolio
// scenario stress-testing and backtesting engine exposed over a JSON API.
//
// Startup sequence:
//  1. Load configuration from environment variables
//  2. Initialize structured logging
//  3. Open the run-history and cache databases, apply schemas
//  4. Build the scenario catalog, sector provider, simulator, scorer,
//     recommendation engine and orchestrator
//  5. Register background maintenance jobs and start the scheduler
//  6. Start the HTTP server and wait for a shutdown signal
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantstack/stresslab/internal/config"
	"github.com/quantstack/stresslab/internal/database"
	"github.com/quantstack/stresslab/internal/modules/marketdata"
	"github.com/quantstack/stresslab/internal/modules/recommendations"
	"github.com/quantstack/stresslab/internal/modules/scenarios"
	scenarioshandlers "github.com/quantstack/stresslab/internal/modules/scenarios/handlers"
	"github.com/quantstack/stresslab/internal/modules/scoring"
	"github.com/quantstack/stresslab/internal/modules/simulation"
	"github.com/quantstack/stresslab/internal/modules/stresstest"
	stresstesthandlers "github.com/quantstack/stresslab/internal/modules/stresstest/handlers"
	"github.com/quantstack/stresslab/internal/reliability"
	"github.com/quantstack/stresslab/internal/scheduler"
	"github.com/quantstack/stresslab/internal/server"
	"github.com/quantstack/stresslab/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Msg("Starting stresslab")

	stressDB, err := database.New(database.Config{
		Path:    cfg.StressDBPath(),
		Profile: database.ProfileLedger,
		Name:    "stress",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open stress database")
	}
	defer stressDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBPath(),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{stressDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Schema migration failed")
		}
	}

	catalog, err := buildCatalog(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build scenario catalog")
	}

	sectorProvider, err := buildSectorProvider(cfg, cacheDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build sector provider")
	}

	simulator := simulation.NewSimulator(sectorProvider, log)
	scorer := scoring.NewScorer(catalog)
	engine := recommendations.NewEngine(catalog, log)

	service := stresstest.NewService(
		catalog,
		simulator,
		scorer,
		engine,
		stresstest.NewRunRepository(stressDB.Conn(), log),
		stresstest.NewBacktestRepository(stressDB.Conn(), log),
		log,
	)

	sched := scheduler.New(log)
	registerMaintenanceJobs(cfg, sched, stressDB, cacheDB, log)
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:                log,
		Port:               cfg.Port,
		DevMode:            cfg.DevMode,
		DataDir:            cfg.DataDir,
		StressDB:           stressDB,
		CacheDB:            cacheDB,
		ScenarioHandlers:   scenarioshandlers.NewHandler(catalog, log),
		StressTestHandlers: stresstesthandlers.NewHandler(service, log),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Stresslab stopped")
}

// buildCatalog seeds the scenario catalog, optionally merging a JSON seed
// file over the built-in scenarios.
func buildCatalog(cfg *config.Config, log zerolog.Logger) (*scenarios.Catalog, error) {
	if cfg.ScenarioSeedPath != "" {
		return scenarios.NewCatalogFromFile(cfg.ScenarioSeedPath, log)
	}
	return scenarios.NewCatalog(log), nil
}

// buildSectorProvider wires the static ticker table (optionally extended
// from a config file) behind the SQLite-backed cache.
func buildSectorProvider(cfg *config.Config, cacheDB *database.DB, log zerolog.Logger) (marketdata.SectorProvider, error) {
	var static *marketdata.StaticSectorProvider
	var err error

	if cfg.SectorTablePath != "" {
		static, err = marketdata.NewStaticSectorProviderFromFile(cfg.SectorTablePath)
		if err != nil {
			return nil, err
		}
	} else {
		static = marketdata.NewStaticSectorProvider(marketdata.DefaultSectorTable())
	}

	cacheRepo := marketdata.NewSectorCacheRepository(cacheDB.Conn())
	return marketdata.NewCachedSectorProvider(static, cacheRepo, log), nil
}

// registerMaintenanceJobs wires the background maintenance schedule:
// nightly database maintenance, hourly cache sweeps, and weekly cloud
// backups when an object store is configured.
func registerMaintenanceJobs(cfg *config.Config, sched *scheduler.Scheduler, stressDB, cacheDB *database.DB, log zerolog.Logger) {
	databases := map[string]*database.DB{"stress": stressDB, "cache": cacheDB}

	daily := reliability.NewDailyMaintenanceJob(databases, cfg.DataDir, log)
	if err := sched.AddJob("0 2 * * *", daily); err != nil {
		log.Error().Err(err).Msg("Failed to register daily maintenance job")
	}

	sweep := reliability.NewCacheSweepJob(marketdata.NewSectorCacheRepository(cacheDB.Conn()), log)
	if err := sched.AddJob("@hourly", sweep); err != nil {
		log.Error().Err(err).Msg("Failed to register cache sweep job")
	}

	if !cfg.Backup.Enabled() {
		log.Debug().Msg("Object store not configured, cloud backups disabled")
		return
	}

	s3Client, err := reliability.NewS3Client(
		cfg.Backup.S3Endpoint,
		cfg.Backup.S3Region,
		cfg.Backup.S3AccessKeyID,
		cfg.Backup.S3SecretAccessKey,
		cfg.Backup.S3Bucket,
		log,
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize object store client, cloud backups disabled")
		return
	}

	backupService := reliability.NewBackupService(s3Client, databases, cfg.DataDir, log)
	backup := reliability.NewCloudBackupJob(backupService, cfg.Backup.RetentionDays, log)
	if err := sched.AddJob("0 3 * * SUN", backup); err != nil {
		log.Error().Err(err).Msg("Failed to register cloud backup job")
	}
}
