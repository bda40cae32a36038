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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssraminder/financial-dashboard/internal/handler"
	"github.com/ssraminder/financial-dashboard/internal/infra/cache"
	"github.com/ssraminder/financial-dashboard/internal/infra/observability"
	"github.com/ssraminder/financial-dashboard/internal/service"
)

func newServeCommand(flags *rootFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciliation HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides PORT)")

	return cmd
}

func runServe(ctx context.Context, flags *rootFlags, port int) error {
	// --- Config ---
	cfg := loadConfig(flags)
	if port > 0 {
		cfg.Port = port
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("commit_concurrency", cfg.CommitConcurrency),
		zap.Bool("auth_disabled", cfg.AuthDisabled),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "bookkeeper")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	refCache := cache.New[any](cfg.CacheTTL)
	defer refCache.Close()

	// --- Backend ---
	be, err := openBackend(cfg, flags, logger)
	if err != nil {
		return err
	}
	defer be.persist(logger)

	if !cfg.AuthDisabled && cfg.SupabaseJWTSecret == "" {
		return errors.New("SUPABASE_JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	if cfg.AuthDisabled {
		logger.Warn("authentication disabled: every request acts as " + handler.LocalActor)
	}

	// --- Services ---
	recSvc := service.NewReconcileService(be.store, refCache, service.Options{
		CommitConcurrency: cfg.CommitConcurrency,
		SessionTTL:        cfg.SessionTTL,
	}, metrics, logger)
	defer recSvc.Close()
	reviewSvc := service.NewReviewService(be.store, refCache, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(recSvc, reviewSvc, handler.Options{
		Auth:        handler.AuthConfig{JWTSecret: cfg.SupabaseJWTSecret, Disabled: cfg.AuthDisabled},
		CORSOrigins: cfg.CORSOrigins,
		Backend:     be.pinger,
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
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
