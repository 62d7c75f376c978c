package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/hugh/serviexpress/internal/storage"
	"github.com/hugh/serviexpress/internal/submit"
	"github.com/hugh/serviexpress/internal/tasks"
	"github.com/hugh/serviexpress/pkg/config"
	"github.com/hugh/serviexpress/pkg/crypto"
	"github.com/hugh/serviexpress/pkg/queue"
	"github.com/hugh/serviexpress/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env, "worker")
	slog.SetDefault(logger)

	if cfg.Backend.SubmitMode != config.SubmitModeQueue {
		logger.Error("the worker only runs with SUBMIT_MODE=queue", "submit_mode", cfg.Backend.SubmitMode)
		os.Exit(1)
	}

	logger.Info("starting ServiExpress worker", "concurrency", cfg.Worker.Concurrency)

	encryptor, err := crypto.MustKey(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	logger.Info("document encryption enabled", "recipient", encryptor.PublicKey())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s3Store, err := storage.NewS3Store(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to create document store", "error", err)
		os.Exit(1)
	}

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency, queue.NewLogger(logger))

	// Create task handler
	handler := tasks.NewHandler(
		logger,
		submit.NewClient(cfg.Backend.URL, cfg.Backend.Timeout(), logger),
		storage.NewSealedStore(s3Store, encryptor),
		encryptor,
		cfg.Worker.Retention(),
	)

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Enqueue document sweeps on schedule
	client := queue.NewClient(&cfg.Redis)
	defer client.Close()

	go func() {
		if err := tasks.RunSweepSchedule(ctx, client, cfg.Worker.SweepCron, logger); err != nil {
			logger.Error("sweep schedule stopped", "error", err)
		}
	}()

	if err := srv.Start(mux); err != nil {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("worker started, waiting for tasks...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	cancel()
	srv.Shutdown()

	logger.Info("worker stopped")
}
