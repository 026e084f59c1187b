package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/tireshop-analytics-go/internal/config"
	"github.com/boddenberg/tireshop-analytics-go/internal/handler"
	"github.com/boddenberg/tireshop-analytics-go/internal/infra/cache"
	"github.com/boddenberg/tireshop-analytics-go/internal/infra/observability"
	"github.com/boddenberg/tireshop-analytics-go/internal/infra/resilience"
	"github.com/boddenberg/tireshop-analytics-go/internal/infra/sheet"
	"github.com/boddenberg/tireshop-analytics-go/internal/service"

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
		zap.String("sources_file", cfg.SourcesFile),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Int("forecast_sub_periods", cfg.ForecastSubPeriods),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "tireshop-analytics")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	reportCache := cache.New[any](cfg.CacheTTL)
	defer reportCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("remote-sources")

	// --- Readers ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	reader := sheet.NewReader(sheet.NewHTTPFetcher(httpClient, cb, resilienceCfg))

	// --- Sources ---
	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		logger.Fatal("failed to load source definitions", zap.String("path", cfg.SourcesFile), zap.Error(err))
	}
	for _, src := range sources {
		logger.Info("source configured",
			zap.String("source", src.Name),
			zap.String("kind", src.Kind),
			zap.String("path", src.Path),
			zap.Bool("remote", src.Remote()),
		)
	}

	// --- Snapshot ---
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 5*time.Minute)
	snap, err := service.NewLoader(reader, metrics, logger, cfg.MaxConcurrency).Load(loadCtx, sources)
	cancelLoad()
	if err != nil {
		logger.Fatal("failed to load snapshot", zap.Error(err))
	}

	// --- Services ---
	reportSvc := service.NewReportService(snap, reportCache, metrics, logger, cfg.ForecastSubPeriods)

	// --- Router ---
	router := handler.NewRouter(reportSvc, metrics, logger)

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

	logger.Info("server stopped")
}
