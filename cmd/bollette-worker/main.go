package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"bollette/internal/amqp"
	"bollette/internal/config"
	applog "bollette/internal/log"
	"bollette/internal/services"
	"bollette/internal/storage"
	"bollette/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logCfg := applog.DefaultConfig()
	logCfg.Component = "match-worker"
	logger := applog.New(logCfg)
	applog.SetDefault(logger)

	logger.Info("Starting bollette-worker")

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

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange,
		cfg.AMQPTransactionQueue, cfg.AMQPResultQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	clock := services.SystemClock{}
	ledger := services.NewLedger(repo, repo, clock)
	generator := services.NewGenerator(repo, ledger, clock)
	matcher := services.NewMatcher(repo, generator, ledger, cfg.FixedMatchTolerance)
	matchWorker := worker.NewMatchWorker(matcher, amqpClient)

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	logger.Info("Transaction matching configured",
		"queue", cfg.AMQPTransactionQueue,
		"result_queue", cfg.AMQPResultQueue,
		"concurrency", cfg.MatchConcurrency)

	err = amqpClient.ConsumeTransactions(ctx, cfg.MatchConcurrency, matchWorker.HandleTransaction)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Transaction consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
