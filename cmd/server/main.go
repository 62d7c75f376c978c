package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/serviexpress/internal/api"
	"github.com/hugh/serviexpress/internal/api/middleware"
	"github.com/hugh/serviexpress/internal/forms"
	"github.com/hugh/serviexpress/internal/storage"
	"github.com/hugh/serviexpress/internal/submit"
	"github.com/hugh/serviexpress/internal/web"
	"github.com/hugh/serviexpress/pkg/config"
	"github.com/hugh/serviexpress/pkg/crypto"
	"github.com/hugh/serviexpress/pkg/queue"
	"github.com/hugh/serviexpress/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
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
	logger := util.NewLogger(cfg.Server.Env, "server")
	slog.SetDefault(logger)

	logger.Info("starting ServiExpress server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
		"submit_mode", cfg.Backend.SubmitMode,
	)

	var (
		submitter   forms.Submitter
		redisClient *redis.Client
		asynqClient *asynq.Client
		inspector   *asynq.Inspector
	)

	switch cfg.Backend.SubmitMode {
	case config.SubmitModeHTTP:
		submitter = submit.NewClient(cfg.Backend.URL, cfg.Backend.Timeout(), logger)

	case config.SubmitModeQueue:
		// Connect to Redis
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}

		encryptor, err := crypto.MustKey(cfg.Encryption.Key)
		if err != nil {
			logger.Error("failed to create encryptor", "error", err)
			os.Exit(1)
		}
		logger.Info("document encryption enabled", "recipient", encryptor.PublicKey())

		s3Store, err := storage.NewS3Store(context.Background(), cfg.Storage, logger)
		if err != nil {
			logger.Error("failed to create document store", "error", err)
			os.Exit(1)
		}

		asynqClient = queue.NewClient(&cfg.Redis)
		inspector = queue.NewInspector(&cfg.Redis)
		submitter = submit.NewQueueSubmitter(
			asynqClient,
			storage.NewSealedStore(s3Store, encryptor),
			encryptor,
			submit.NewClient(cfg.Backend.URL, cfg.Backend.Timeout(), logger),
			logger,
		)

	default:
		logger.Warn("SUBMIT_MODE=log, submissions are logged and discarded")
		submitter = submit.NewLogSubmitter(logger)
	}

	// Load templates
	templates, err := web.LoadTemplates()
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	// Get static file system
	staticFS, err := web.GetStaticFS()
	if err != nil {
		logger.Error("failed to get static fs", "error", err)
		os.Exit(1)
	}

	csrfStore := middleware.NewCSRFStore()

	// Create router
	router := api.NewRouter(api.RouterConfig{
		Redis:          redisClient,
		Inspector:      inspector,
		Logger:         logger,
		Renderer:       web.NewRenderer(templates),
		Submitter:      submitter,
		CSRF:           csrfStore,
		StaticFS:       staticFS,
		SubmitMode:     cfg.Backend.SubmitMode,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
		MaxUploadBytes: cfg.Upload.MaxBytes(),
	})

	// Create HTTP server. Writes wait on the backend in http mode.
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Backend.Timeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	router.Close()
	csrfStore.Stop()

	// Close Asynq client
	if asynqClient != nil {
		asynqClient.Close()
	}
	if inspector != nil {
		inspector.Close()
	}

	// Close Redis connection
	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("server stopped")
}
