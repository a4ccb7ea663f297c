package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/cosmohq/cosmo-core/internal/api"
	"github.com/cosmohq/cosmo-core/internal/auth"
	"github.com/cosmohq/cosmo-core/internal/config"
	"github.com/cosmohq/cosmo-core/internal/executor"
	"github.com/cosmohq/cosmo-core/internal/intent"
	"github.com/cosmohq/cosmo-core/internal/orchestrator"
	"github.com/cosmohq/cosmo-core/internal/ratelimit"
	"github.com/cosmohq/cosmo-core/internal/response"
	"github.com/cosmohq/cosmo-core/internal/router"
	"github.com/cosmohq/cosmo-core/internal/selector"
	"github.com/cosmohq/cosmo-core/internal/store"
	"github.com/cosmohq/cosmo-core/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		logger.Warn("database not reachable (registries will use fallbacks, auth will fail)", "error", err)
	} else {
		logger.Info("database connected")
	}

	// Connect to Redis
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (key cache and rate limiting disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	// Build provider registry with config hot reload
	providerRegistry := router.BuildFromConfig(loader.Providers())
	loader.OnReload(func() {
		newRegistry := router.BuildFromConfig(loader.Providers())
		*providerRegistry = *newRegistry
		logger.Info("provider registry reloaded")
	})

	metrics := telemetry.NewMetrics()

	// Data access + intent cache
	dataStore := store.New(dbPool)
	intentCache := store.NewIntentCache(dataStore, cfg.Pipeline.IntentCacheTTL).
		OnLoad(func(status store.LoadStatus) { metrics.RecordIntentCacheLoad(string(status)) })

	// Pipeline components
	health := router.NewHealthTracker(
		cfg.Pipeline.CircuitBreaker.FailureThreshold,
		cfg.Pipeline.CircuitBreaker.RecoveryProbeInterval,
	)
	classifier := router.NewClassifier(providerRegistry)
	modelRouter := router.New(classifier, health)

	analyzer := intent.NewAnalyzer(intentCache, classifier)
	functionSelector := selector.New(dataStore)

	tools := executor.NewToolRegistry()
	tools.Register(executor.NewMapsTool("", 0))
	tools.Register(executor.NewKnowledgeTool(dataStore))
	tools.Register(executor.NewStubTool("web_search"))
	tools.Register(executor.NewStubTool("gmail"))
	tools.Register(executor.NewStubTool("calendar"))
	tools.Register(executor.NewPassthroughTool("chat"))
	tools.Register(executor.NewPassthroughTool("image_generation"))
	exec := executor.New(tools, cfg.Pipeline.FunctionCallTimeout, cfg.Pipeline.MaxParallelCalls)

	pipeline := orchestrator.New(orchestrator.Deps{
		Analyzer:  analyzer,
		Selector:  functionSelector,
		Executor:  exec,
		Router:    modelRouter,
		Providers: providerRegistry,
		Processor: response.NewProcessor(dataStore),
		Catalog:   dataStore,
		Routing:   loader.Routing,
		Pipeline:  cfg.Pipeline,
		Recorder:  metrics,
	})

	// HTTP wiring
	keyStore := auth.NewCachedKeyStore(dbPool, rdb)
	limiter := ratelimit.NewLimiter(rdb)
	budget := ratelimit.NewBudgetTracker(rdb)
	handler := api.NewHandler(pipeline, dataStore, intentCache, health, version).
		WithSpendRecorder(budget).
		WithDebugOutput(cfg.Telemetry.DebugOutput)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	// Unauthenticated routes
	r.Get("/cosmo/v1/health", handler.Health)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(keyStore))
		r.Use(ratelimit.Middleware(limiter, budget, metrics))
		r.Post("/v1/chat", handler.Chat)
		r.Post("/v1/webhooks/{source}", handler.Webhook)
		r.Post("/v1/tasks/run", handler.RunTask)
		r.Post("/v1/agent/actions", handler.AgentAction)
		r.Get("/v1/models", handler.ListModels)
		r.Post("/cosmo/v1/admin/intent-cache/refresh", handler.RefreshIntentCache)
	})

	// Metrics server on its own port
	if cfg.Telemetry.MetricsPort > 0 {
		go func() {
			metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics server starting", "addr", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("cosmo starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("cosmo stopped")
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}
