package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexabudget/nexabudget-go/internal/config"
	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/handler"
	"github.com/nexabudget/nexabudget-go/internal/infra/cache"
	"github.com/nexabudget/nexabudget-go/internal/infra/client"
	"github.com/nexabudget/nexabudget-go/internal/infra/observability"
	"github.com/nexabudget/nexabudget-go/internal/infra/resilience"
	"github.com/nexabudget/nexabudget-go/internal/infra/supabase"
	"github.com/nexabudget/nexabudget-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("external_call_timeout", cfg.ExternalCallTimeout),
		zap.Int("sync_workers", cfg.SyncWorkers),
		zap.Duration("sync_cooldown", cfg.SyncCooldown),
		zap.Float64("similarity_threshold", cfg.SimilarityThreshold),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "nexabudget")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	cb := resilience.NewCircuitBreaker("external-apis")

	// --- Stores (Supabase PostgREST) ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}
	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)

	// --- Provider clients ---
	bankCache := cache.New[[]domain.FeedBank](cfg.BankListCacheTTL)
	feed := client.NewBankFeedClient(httpClient, cfg.IntegratorBaseURL, cb, resilienceCfg, bankCache)
	genai := client.NewGenAIClient(httpClient, cfg.GenAIBaseURL, cfg.GenAIAPIKey, cb, resilienceCfg)

	// --- Services ---
	semantic := service.NewSemanticCache(store, genai, cfg.SimilarityThreshold, cfg.SemanticNeighbors, metrics, logger)
	candCache := cache.New[[]domain.Category](cfg.CategoryCacheTTL)
	classifier := service.NewClassifier(store, semantic, genai, candCache, metrics, logger)
	importer := service.NewImporter(store, classifier, metrics, logger)
	reconciler := service.NewReconciler(store, logger)
	syncer := service.NewSyncer(store, feed, importer, reconciler,
		cfg.SyncWorkers, cfg.SyncCooldown, cfg.ExternalCallTimeout, metrics, logger)
	accounts := service.NewAccounts(store, store, reconciler, logger)
	categories := service.NewCategories(store, logger)
	ledger := service.NewLedger(store, store, store, semantic, logger)
	auth := service.NewAuth(store, cfg.JWTSecret, cfg.JWTAccessTTL, logger)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), cfg.ExternalCallTimeout)
	if err := categories.EnsureDefaults(seedCtx); err != nil {
		logger.Warn("failed to seed default categories", zap.Error(err))
	}
	seedCancel()

	// --- Router ---
	router := handler.NewRouter(&handler.Services{
		Auth:       auth,
		Accounts:   accounts,
		Ledger:     ledger,
		Categories: categories,
		Syncer:     syncer,
		Feed:       feed,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	// Let in-flight sync runs finish so no account stays flagged.
	syncer.Wait()

	logger.Info("server stopped")
}
