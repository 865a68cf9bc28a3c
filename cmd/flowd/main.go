// Command flowd runs the zapfunnel flow service: the flow document
// store, mutation API, validator, simulator, and export endpoints
// behind a single HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zapfunnel/flow-service/internal/api"
	"github.com/zapfunnel/flow-service/internal/archive"
	"github.com/zapfunnel/flow-service/internal/auth"
	"github.com/zapfunnel/flow-service/internal/config"
	"github.com/zapfunnel/flow-service/internal/exporter"
	"github.com/zapfunnel/flow-service/internal/flowstore"
	"github.com/zapfunnel/flow-service/internal/tracing"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting flow service",
		"port", cfg.Port,
		"store", cfg.FlowStoreType,
		"auth_enabled", cfg.AuthEnabled,
		"archive_enabled", cfg.ArchiveEnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingCfg := tracing.DefaultConfig()
	tracingCfg.Enabled = cfg.TracingEnabled
	tracingCfg.OTLPEndpoint = cfg.TracingEndpoint
	tracer, err := tracing.Init(ctx, tracingCfg, logger)
	if err != nil {
		logger.Warn("tracing init failed, continuing without tracing", "error", err)
	}

	store := newStore(ctx, cfg, logger)
	defer store.Close()

	exp, err := exporter.New()
	if err != nil {
		logger.Error("failed to initialize exporter", "error", err)
		os.Exit(1)
	}

	var arc archive.Store
	if cfg.ArchiveEnabled {
		s3, err := archive.NewS3Store(&archive.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			UseSSL:          cfg.S3UseSSL,
			PathPrefix:      cfg.S3PathPrefix,
		})
		if err != nil {
			logger.Error("failed to initialize archive store", "error", err)
			os.Exit(1)
		}
		arc = s3
	}

	var authMW *auth.Middleware
	if cfg.AuthEnabled {
		manager, err := auth.NewManager([]byte(cfg.AuthSecret), cfg.AuthIssuer, cfg.AuthTTL)
		if err != nil {
			logger.Error("auth enabled but misconfigured", "error", err)
			os.Exit(1)
		}
		authMW = auth.NewMiddleware(manager, &auth.MiddlewareConfig{Enabled: true})
	}

	limiter := auth.NewPerIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	handlers := api.NewHandlers(store, exp, arc, cfg, logger)
	server := api.NewServer(handlers, authMW, limiter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if tracer != nil {
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}
	logger.Info("stopped")
}

// newStore selects the flow store backend, falling back to memory when
// Redis is unreachable so local development works without infra.
func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) flowstore.Store {
	if cfg.FlowStoreType != "redis" {
		return flowstore.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, falling back to in-memory store",
			"addr", cfg.RedisAddr, "error", err)
		client.Close()
		return flowstore.NewMemoryStore()
	}

	logger.Info("using redis flow store", "addr", cfg.RedisAddr)
	return flowstore.NewRedisStoreWithClient(client)
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
