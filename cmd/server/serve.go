package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cotizador/backend/config"
	httpDelivery "github.com/cotizador/backend/internal/delivery/http"
	"github.com/cotizador/backend/internal/domain"
	"github.com/cotizador/backend/internal/infrastructure/cache"
	"github.com/cotizador/backend/internal/infrastructure/catalog"
	"github.com/cotizador/backend/internal/logger"
	"github.com/cotizador/backend/internal/metrics"
	"github.com/cotizador/backend/internal/usecase"
)

const cacheCleanupInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Loads the product catalog and serves the quotation API.
A catalog with missing columns aborts startup. A missing or unreadable
file is logged and the server starts without data until a reload succeeds.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Load configuration
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.Server.Environment, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting cotizador",
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Catalog
	store := catalog.NewStore(cfg.Catalog.Path, catalog.LoadOptions{
		Separator: cfg.Catalog.SeparatorRune(),
		Logger:    log,
	}, m)

	if _, err := store.Reload(ctx); err != nil {
		if errors.Is(err, domain.ErrSchema) {
			return fmt.Errorf("catalog %s: %w", cfg.Catalog.Path, err)
		}
		log.Warn("starting without product data, check the catalog file",
			zap.String("path", cfg.Catalog.Path), zap.Error(err))
	}

	switch {
	case cfg.Catalog.Watch && store.Remote():
		log.Warn("catalog.watch has no effect on remote catalogs, send SIGHUP to reload")
	case cfg.Catalog.Watch:
		watcher := catalog.NewWatcher(store, cfg.Catalog.WatchDebounce, log)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Error("catalog watcher stopped", zap.Error(err))
			}
		}()
	}
	go reloadOnHangup(ctx, store, log)

	// Result cache; a nil repository disables caching
	var quoteCache domain.CacheRepository
	if cfg.Cache.Enabled {
		memoryCache := cache.NewMemoryCache(cfg.Cache.MaxSize, cacheCleanupInterval)
		defer memoryCache.Close()
		quoteCache = memoryCache
	}

	// Initialize usecase layer
	quotes := usecase.NewQuoteService(store, quoteCache, m, log, usecase.QuoteServiceConfig{
		CacheTTL:           cfg.Cache.TTL,
		EnableDebugLogging: cfg.Matching.DebugLogging,
	})

	log.Info("matching configured",
		zap.Int("min_score", cfg.Matching.MinScore),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Int("rate_limit_per_ip", cfg.RateLimit.PerIP),
		zap.Bool("watch", cfg.Catalog.Watch))

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(quotes, log, httpDelivery.HandlerConfig{
		DefaultMinScore: cfg.Matching.MinScore,
		Version:         version,
	})

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, httpDelivery.RouterDeps{
		Logger:   log,
		Observer: m,
		Gatherer: reg,
	})

	return runHTTPServer(ctx, ":"+cfg.Server.Port, router, cfg.Server.ShutdownTimeout, log)
}

// reloadOnHangup reloads the catalog every time the process receives SIGHUP
func reloadOnHangup(ctx context.Context, store *catalog.Store, log *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			log.Info("SIGHUP received, reloading catalog")
			// Failure keeps the old catalog; Reload already logged it.
			_, _ = store.Reload(ctx)
		}
	}
}

// runHTTPServer serves until ctx is cancelled, then drains in-flight
// requests for at most shutdownTimeout
func runHTTPServer(ctx context.Context, addr string, h http.Handler, shutdownTimeout time.Duration, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
