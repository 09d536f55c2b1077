package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cellarium-cloud/cas-api/internal/config"
	dbRedis "github.com/cellarium-cloud/cas-api/internal/db/redis"
	logpkg "github.com/cellarium-cloud/cas-api/internal/logger"
	"github.com/cellarium-cloud/cas-api/internal/metrics"
	activityrepo "github.com/cellarium-cloud/cas-api/internal/repository/activity"
	matchesrepo "github.com/cellarium-cloud/cas-api/internal/repository/matches"
	registryrepo "github.com/cellarium-cloud/cas-api/internal/repository/registry"
	chiTransport "github.com/cellarium-cloud/cas-api/internal/transport/chi"
	"github.com/cellarium-cloud/cas-api/internal/transport/embedding"
	"github.com/cellarium-cloud/cas-api/internal/transport/matching"
	"github.com/cellarium-cloud/cas-api/internal/transport/warehouse"
	authzuc "github.com/cellarium-cloud/cas-api/internal/usecase/authz"
	cellsuc "github.com/cellarium-cloud/cas-api/internal/usecase/cells"
	healthuc "github.com/cellarium-cloud/cas-api/internal/usecase/health"
	"github.com/cellarium-cloud/cas-api/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting CAS API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register upstream metrics explicitly (no init())
	metrics.RegisterUpstreamMetrics()

	// Repositories
	registry := registryrepo.New(store, cfg.Storage.KeyPrefix)
	activity := activityrepo.New(store, cfg.Storage.KeyPrefix)
	matchStore := matchesrepo.New(store, cfg.Storage.KeyPrefix, matchesrepo.Config{
		Dataset:     cfg.Staging.Dataset,
		Expiration:  time.Duration(cfg.Staging.ExpirationMin) * time.Minute,
		ChunkSize:   cfg.Staging.ChunkSize,
		MaxParallel: cfg.Staging.MaxParallel,
	})

	// Upstream clients
	embedder := embedding.NewClient(&embedding.Config{
		BaseURL: cfg.Embedding.BaseURL,
		Timeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	matcher := matching.NewClient(&matching.Config{
		Timeout: time.Duration(cfg.Matching.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	metadata := warehouse.NewClient(&warehouse.Config{
		BaseURL: cfg.Warehouse.BaseURL,
		Project: cfg.Warehouse.Project,
		Timeout: time.Duration(cfg.Warehouse.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	// Use case services
	authzSvc := authzuc.New(registry, activity, logger)
	cellsSvc := cellsuc.NewService(&cellsuc.Config{
		Authz:    authzSvc,
		Embedder: embedder,
		Matcher:  matcher,
		Matches:  matchStore,
		Metadata: metadata,
		Logger:   logger,
	})
	healthSvc := healthuc.New(store, embedder, metadata)

	server := chiTransport.NewServer(cellsSvc, registry, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(registry, logger))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
