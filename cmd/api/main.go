package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tenantgate/platform/internal/app"
	"github.com/tenantgate/platform/internal/auth"
	"github.com/tenantgate/platform/internal/domain"
	"github.com/tenantgate/platform/internal/geo"
	"github.com/tenantgate/platform/internal/infra"
	"github.com/tenantgate/platform/internal/pipeline"
	"github.com/tenantgate/platform/internal/risk"
	"github.com/tenantgate/platform/internal/session"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Connect to Postgres
	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	// Apply migrations
	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// Parse JWT expiry durations
	userExpiry, err := time.ParseDuration(cfg.JWTUserExpiry)
	if err != nil {
		return fmt.Errorf("parse user JWT expiry: %w", err)
	}
	adminExpiry, err := time.ParseDuration(cfg.JWTAdminExpiry)
	if err != nil {
		return fmt.Errorf("parse admin JWT expiry: %w", err)
	}
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, userExpiry, adminExpiry)

	// Session store
	var sessions domain.SessionStore
	if cfg.SessionStore == "memory" {
		sessions = session.NewMemoryStore()
		logger.Info("using in-memory session store")
	} else {
		sessions = session.NewPgStore(pool)
	}

	// GeoIP (optional)
	var country pipeline.CountryResolver
	if cfg.GeoIPDBPath != "" {
		resolver, err := geo.Open(cfg.GeoIPDBPath)
		if err != nil {
			return fmt.Errorf("open geoip database: %w", err)
		}
		defer resolver.Close()
		country = resolver
		logger.Info("geoip database loaded", "path", cfg.GeoIPDBPath)
	}

	// Kafka producer (no-op when disabled)
	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	application := app.New(app.Deps{
		Pool:       pool,
		Sessions:   sessions,
		JWTMgr:     jwtMgr,
		Geo:        country,
		Publisher:  producer,
		Logger:     logger,
		CORSOrigin: cfg.CORSAllowedOrigins,
	})

	// Background cleanup of expired risk state and old events
	cleanupInterval, err := time.ParseDuration(cfg.RiskCleanupInterval)
	if err != nil {
		return fmt.Errorf("parse risk cleanup interval: %w", err)
	}
	sweeper := risk.NewSweeper(application.RiskEngine, cleanupInterval, logger)
	sweeper.Start(ctx)

	// Idle session garbage collection (postgres store only)
	if pg, ok := sessions.(*session.PgStore); ok {
		janitor := session.NewJanitor(pg, cleanupInterval, logger)
		janitor.Start(ctx)
	}

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      application.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
