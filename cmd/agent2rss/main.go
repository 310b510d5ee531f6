package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	app "github.com/agent2rss/agent2rss/internal/app"
	"github.com/agent2rss/agent2rss/internal/app/httpapi"
	"github.com/agent2rss/agent2rss/internal/app/storage/postgres"
	"github.com/agent2rss/agent2rss/internal/config"
	"github.com/agent2rss/agent2rss/internal/middleware"
	"github.com/agent2rss/agent2rss/internal/platform/migrations"
	"github.com/agent2rss/agent2rss/internal/render"
	"github.com/agent2rss/agent2rss/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("agent2rss", cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("service exited with error")
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	themes, err := render.LoadCatalog(cfg.ThemesFile)
	if err != nil {
		return fmt.Errorf("load themes: %w", err)
	}

	var stores app.Stores
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		if err := migrations.Apply(ctx, db); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		store := postgres.New(db)
		stores = app.Stores{Channels: store, Posts: store}
		log.Info("using postgres store")
	} else {
		log.Info("no DATABASE_URL set, using in-memory store")
	}

	application, err := app.New(stores, app.Options{
		AdminToken:    cfg.AuthToken,
		FeedURL:       cfg.FeedURL,
		DefaultTheme:  cfg.DefaultTheme,
		SummaryLength: cfg.SummaryLength,
		Themes:        themes,
	}, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}
	defer func() { _ = application.Stop(context.Background()) }()

	registry := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(registry)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, log.WithField("component", "ratelimit"))

	api := httpapi.NewHandler(application, cfg, log.WithField("component", "httpapi"))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", limiter.Handler(metrics.Handler(api)))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
