package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bollette/internal/config"
	applog "bollette/internal/log"
	"bollette/internal/services"
	"bollette/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logCfg := applog.DefaultConfig()
	logCfg.Component = "billing-worker"
	logger := applog.New(logCfg)
	applog.SetDefault(logger)

	logger.Info("Starting billing-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	clock := services.SystemClock{}
	ledger := services.NewLedger(repo, repo, clock)
	generator := services.NewGenerator(repo, ledger, clock)
	consolidator := services.NewConsolidator(repo)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Billing cycle configured",
		"interval", cfg.BillingInterval,
		"months_back", cfg.GenerateMonthsBack,
		"months_forward", cfg.GenerateMonthsForward,
		"consolidation_scope", cfg.ConsolidationScope,
		"sqlite_db", cfg.SQLiteDBPath)

	runCycle := func() {
		report, err := generator.Generate(ctx, cfg.GenerateMonthsBack, cfg.GenerateMonthsForward)
		if err != nil {
			logger.Error("Bill generation failed", "error", err)
		} else {
			logger.Info("Bill generation cycle complete",
				"created", report.Created,
				"skipped", report.Skipped,
				"errors", len(report.Errors))
		}

		conReport, err := consolidator.Consolidate(ctx, services.Scope(cfg.ConsolidationScope))
		if err != nil {
			logger.Error("Consolidation failed", "error", err)
			return
		}
		logger.Info("Consolidation cycle complete",
			"groups_merged", conReport.GroupsMerged,
			"orphans_linked", conReport.OrphansLinked,
			"errors", len(conReport.Errors))
	}

	// Run initial cycle on startup
	logger.Info("Running initial billing cycle...")
	runCycle()

	// Setup periodic billing ticker
	ticker := time.NewTicker(cfg.BillingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				logger.Info("Running periodic billing cycle...")
				runCycle()
				logger.Info("Next billing cycle scheduled",
					"next_check", now.Add(cfg.BillingInterval).Format("15:04:05"))
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Billing worker stopped gracefully")
}
