// Package main is the entrypoint for the medinventory API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/medinventory/internal/ai"
	"github.com/kiranshivaraju/medinventory/internal/api"
	"github.com/kiranshivaraju/medinventory/internal/api/handler"
	mw "github.com/kiranshivaraju/medinventory/internal/api/middleware"
	"github.com/kiranshivaraju/medinventory/internal/cache"
	"github.com/kiranshivaraju/medinventory/internal/config"
	"github.com/kiranshivaraju/medinventory/internal/jobs"
	"github.com/kiranshivaraju/medinventory/internal/keywords"
	"github.com/kiranshivaraju/medinventory/internal/pipeline"
	"github.com/kiranshivaraju/medinventory/internal/progress"
	"github.com/kiranshivaraju/medinventory/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	pruneInterval   = 5 * time.Minute
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast on invalid values
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Create cache: Redis when configured, in-process otherwise
	c, closeCache, err := newCache(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeCache()

	// 3. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 4. Keyword tables
	tables, err := loadKeywords(cfg.Pipeline.KeywordsFile)
	if err != nil {
		return fmt.Errorf("load keywords: %w", err)
	}

	// 5. Artifact store
	files, err := newStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("create file store: %w", err)
	}

	// 6. Pipeline, progress tracker and job service
	tracker := progress.NewTracker(progress.WithMirror(c, cfg.Server.JobRetention+pruneInterval, cache.JobProgressKey))
	p := pipeline.New(aiProvider, tables, files, pipelineConfig(cfg))
	svc := jobs.NewService(p, tracker, files)

	go pruneLoop(ctx, svc, cfg.Server.JobRetention, pruneInterval)

	// 7. Build router with dependencies
	jobHandlers := handler.NewJobs(handler.JobsConfig{
		Service:        svc,
		Progress:       tracker,
		Cache:          c,
		Files:          files,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Defaults: pipeline.Options{
			PreserveExisting: cfg.Pipeline.PreserveExisting,
			BatchSize:        cfg.Pipeline.BatchSize,
		},
	})

	router := api.NewRouter(api.Dependencies{
		RateLimit: mw.NewRateLimit(c, cfg.Server.RateLimitPerMinute),

		HealthHandler:   handler.NewHealthHandler(c, aiProvider.Name()),
		SubmitJob:       jobHandlers.Submit,
		ListJobs:        jobHandlers.List,
		PollJob:         jobHandlers.Poll,
		CancelJob:       jobHandlers.Cancel,
		DownloadResult:  jobHandlers.DownloadResult,
		DownloadSummary: jobHandlers.DownloadSummary,
	})

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := svc.Close(shutdownCtx); err != nil {
		return fmt.Errorf("stop running job: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newCache connects to Redis when a URL is configured and falls back to an
// in-process cache otherwise.
func newCache(ctx context.Context, cfg config.RedisConfig) (cache.Cache, func(), error) {
	if cfg.URL == "" {
		slog.Info("using in-process cache")
		return cache.NewMemoryCache(time.Minute), func() {}, nil
	}

	redisCache, err := cache.NewRedisCache(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := redisCache.Ping(ctx); err != nil {
		redisCache.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")
	return redisCache, func() { redisCache.Close() }, nil
}

// newStore returns the artifact store shared by the pipeline, the job
// service and the download handlers.
func newStore(cfg config.StorageConfig) (store.Store, error) {
	files, err := store.NewFileStore(cfg.UploadDir, cfg.ResultsDir)
	if err != nil {
		return nil, err
	}
	slog.Info("artifact store ready", "uploads", cfg.UploadDir, "results", cfg.ResultsDir)
	return files, nil
}

func loadKeywords(path string) (keywords.Tables, error) {
	if path == "" {
		return keywords.Default(), nil
	}
	tables, err := keywords.LoadFile(path)
	if err != nil {
		return keywords.Tables{}, err
	}
	slog.Info("keyword tables loaded", "path", path, "category_entries", tables.Category.Len())
	return tables, nil
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		CategoryPause:    cfg.Pipeline.CategoryPause,
		FacilityPause:    cfg.Pipeline.FacilityPause,
		DescriptionPause: cfg.Pipeline.DescriptionPause,
		DescriptionRPM:   cfg.Pipeline.DescriptionRPM,
		DescriptionModel: cfg.AI.DescriptionModel,
		DescribeAttempts: cfg.Pipeline.DescribeAttempts,
		CostPer1KTokens:  cfg.Pipeline.CostPer1KTokens,
	}
}

// pruneLoop forgets finished jobs older than retention until ctx is done.
func pruneLoop(ctx context.Context, svc *jobs.Service, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.Prune(retention)
		}
	}
}
