package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/api/option"

	"github.com/oneirolabs/oneiro/internal"
	"github.com/oneirolabs/oneiro/internal/ai"
	aimock "github.com/oneirolabs/oneiro/internal/ai/mock"
	"github.com/oneirolabs/oneiro/internal/auth"
	"github.com/oneirolabs/oneiro/internal/billing"
	"github.com/oneirolabs/oneiro/internal/handler"
	"github.com/oneirolabs/oneiro/internal/metrics"
	"github.com/oneirolabs/oneiro/internal/middleware"
	"github.com/oneirolabs/oneiro/internal/service"
	"github.com/oneirolabs/oneiro/internal/storage"
	"github.com/oneirolabs/oneiro/internal/store"
	"github.com/oneirolabs/oneiro/internal/video"
	videomock "github.com/oneirolabs/oneiro/internal/video/mock"
	"github.com/oneirolabs/oneiro/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize stores
	var (
		dreamStore   store.DreamStore   = store.NewPostgresDreamStore(db)
		profileStore store.ProfileStore = store.NewPostgresProfileStore(db)
	)
	creditsStore := store.NewPostgresCreditsStore(db)
	reflectionStore := store.NewPostgresReflectionStore(db)
	jobStore := store.NewPostgresVideoJobStore(db)

	// During the migration window, reads fall through to the legacy
	// Firestore project for users whose data has not been copied yet.
	if cfg.FirestoreProjectID != "" {
		var opts []option.ClientOption
		if cfg.FirestoreCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.FirestoreCredentialsFile))
		}
		fsClient, err := firestore.NewClient(ctx, cfg.FirestoreProjectID, opts...)
		if err != nil {
			return fmt.Errorf("firestore client failed: %w", err)
		}
		defer fsClient.Close()

		legacy := store.NewFirestoreLegacySource(fsClient)
		dreamStore = store.NewMigratingDreamStore(dreamStore, legacy, logger)
		profileStore = store.NewMigratingProfileStore(profileStore, legacy, logger)
		logger.Info("Legacy migration enabled", "project", cfg.FirestoreProjectID)
	}

	// Initialize media storage
	var mediaStorage storage.Storage
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		mediaStorage, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		mediaStorage, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Initialize video renderer
	var renderer video.Renderer
	if cfg.VideoProvider == "http" {
		tokens, err := auth.NewHTTPTokenSource(auth.Config{
			TokenURL: cfg.VideoTokenURL,
			APIKey:   cfg.VideoServiceAPIKey,
		})
		if err != nil {
			return fmt.Errorf("token source failed: %w", err)
		}
		renderer, err = video.NewClient(video.Config{
			BaseURL:        cfg.VideoServiceURL,
			MaxRetries:     cfg.VideoMaxRetries,
			RetryDelay:     cfg.VideoRetryDelay,
			RequestTimeout: cfg.VideoRequestTimeout,
		}, tokens, logger)
		if err != nil {
			return fmt.Errorf("render client failed: %w", err)
		}
	} else {
		renderer = videomock.New(logger)
		logger.Info("Using mock video renderer")
	}

	// Initialize AI provider. The Anthropic client implements both
	// interpretation and reflection; the mock does the same.
	var (
		interpreter ai.Interpreter
		reflector   ai.Reflector
	)
	if cfg.AIProvider == "anthropic" {
		anthropic, err := ai.NewAnthropicInterpreter(ai.AnthropicConfig{
			APIKey:         cfg.AnthropicAPIKey,
			Model:          cfg.AnthropicModel,
			MaxRetries:     cfg.AIMaxRetries,
			RetryDelay:     cfg.AIRetryBaseDelay,
			RequestTimeout: cfg.AIRequestTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("anthropic client failed: %w", err)
		}
		interpreter, reflector = anthropic, anthropic
	} else {
		mock := aimock.NewInterpreter()
		interpreter, reflector = mock, mock
		logger.Info("Using mock AI provider")
	}

	// Initialize services
	profileService := service.NewProfileService(profileStore, logger)
	mediaService := service.NewMediaService(mediaStorage, dreamStore, logger)
	dreamService := service.NewDreamService(dreamStore, profileService, interpreter, logger)
	creditsService := service.NewCreditsService(creditsStore, profileService, logger)
	reflectionService := service.NewReflectionService(reflectionStore, dreamStore, profileService, creditsService, reflector, logger)
	usageService := service.NewUsageService(profileService, logger)
	videoService := service.NewVideoService(renderer, dreamStore, jobStore, profileService, mediaService, logger)

	// Initialize billing (optional in development)
	var billingService billing.Service
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			ProMonthlyPriceID:     cfg.StripeProMonthlyPriceID,
			ProYearlyPriceID:      cfg.StripeProYearlyPriceID,
			PremiumMonthlyPriceID: cfg.StripePremiumMonthlyPriceID,
			PremiumYearlyPriceID:  cfg.StripePremiumYearlyPriceID,
			VIPMonthlyPriceID:     cfg.StripeVIPMonthlyPriceID,
			VIPYearlyPriceID:      cfg.StripeVIPYearlyPriceID,
		})
	} else {
		logger.Warn("Stripe is not configured; billing endpoints disabled")
	}

	// Start the render queue poller
	if cfg.PollerEnabled {
		poller, err := worker.New(renderer, jobStore, dreamStore, profileStore, mediaService, worker.Config{
			PollInterval:    cfg.PollerInterval,
			PollTimeout:     cfg.PollerTimeout,
			ShutdownTimeout: cfg.PollerShutdownWait,
		}, logger)
		if err != nil {
			return fmt.Errorf("poller initialization failed: %w", err)
		}
		poller.Start(ctx)
		defer poller.Stop()
	}

	// Initialize middleware
	authn := middleware.NewAuthenticator(cfg.JWTSecret, logger)
	limiter := middleware.NewRateLimiter(
		middleware.NewMemoryStore(10000),
		cfg.RateLimitMax,
		cfg.RateLimitWindow,
		nil,
		logger,
	)
	requestLogger := middleware.NewRequestLogger(logger)
	metricsAuth := middleware.NewMetricsAuth(cfg.MetricsUsername, cfg.MetricsPassword)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check and metrics (public / basic-auth)
	handler.NewHealthHandler(db, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Locally stored media, served from disk in development
	if cfg.StorageProvider == storage.ProviderLocal {
		fileFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", fileFS))
	}

	// Stripe webhooks (signature-verified, no bearer auth)
	handler.NewWebhookHandler(billingService, profileService, profileStore, logger).RegisterRoutes(mux)

	// Authenticated API routes
	requireUser := middleware.Stack(authn.Require, limiter.Limit)

	handler.NewDreamHandler(dreamService, logger).RegisterRoutes(mux, requireUser)
	handler.NewVideoHandler(videoService, logger).RegisterRoutes(mux, requireUser)
	handler.NewReflectionHandler(reflectionService, creditsService, logger).RegisterRoutes(mux, requireUser)
	handler.NewProfileHandler(profileService, usageService, logger).RegisterRoutes(mux, requireUser)
	handler.NewBillingHandler(billingService, profileService, profileStore, cfg.BaseURL, logger).RegisterRoutes(mux, requireUser)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: requestLogger.Handler(metrics.Middleware(mux)),
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
