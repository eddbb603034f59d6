// Package main is the entry point for the intelligence service
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/estatehub/intelligence/internal/agent"
	"github.com/estatehub/intelligence/internal/api"
	"github.com/estatehub/intelligence/internal/config"
	"github.com/estatehub/intelligence/internal/embedding"
	"github.com/estatehub/intelligence/internal/indexer"
	"github.com/estatehub/intelligence/internal/metrics"
	"github.com/estatehub/intelligence/internal/middleware"
	"github.com/estatehub/intelligence/internal/observability"
	"github.com/estatehub/intelligence/internal/orchestrator"
	"github.com/estatehub/intelligence/internal/repository"
	"github.com/estatehub/intelligence/internal/search"
	"github.com/estatehub/intelligence/internal/service"
)

var (
	// Version information (set via ldflags during build)
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Intelligence Service\nVersion: %s\nBuild Time: %s\nGit Commit: %s\n",
			version, buildTime, gitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewStandardLoggerWithLevel("intelligence",
		observability.ParseLevel(cfg.Service.LogLevel))
	logger.Info("Starting intelligence service", map[string]interface{}{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	db, err := connectDatabase(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Embedding provider chain: remote call behind a circuit breaker, with an
	// optional Redis cache in front
	var provider embedding.Provider = embedding.NewBreakerProvider(
		embedding.NewOpenAIProvider(
			cfg.Embedding.APIKey,
			cfg.Embedding.BaseURL,
			cfg.Embedding.Model,
			cfg.Embedding.Timeout,
		),
		logger,
	)

	if cfg.Redis.Enabled {
		redisClient, err := connectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis unavailable, embedding cache disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer func() {
				_ = redisClient.Close()
			}()
			provider = embedding.NewCachedProvider(provider, redisClient, cfg.Redis.CacheTTL, logger, m)
		}
	}

	propertyRepo := repository.NewPropertyRepository(db)
	embeddingRepo := repository.NewEmbeddingRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statementStore := repository.NewStatementStore(db)

	ix := indexer.NewIndexer(
		propertyRepo,
		embeddingRepo,
		provider,
		cfg.Embedding.Dimensions,
		cfg.Search.ReindexWorkers,
		logger,
		m,
	)

	searchEngine := search.NewEngine(cfg.Search.DefaultLimit, logger, m)
	hydrator := search.NewHydrator(propertyRepo)

	llm := agent.NewOpenAIChatProvider(
		cfg.LLM.APIKey,
		cfg.LLM.BaseURL,
		cfg.LLM.Model,
		cfg.LLM.Timeout,
	)
	commandEngine := agent.NewEngine(llm, statementStore, auditRepo, logger, m)

	var hub orchestrator.Orchestrator
	if cfg.Hub.URL != "" {
		hub = orchestrator.NewHubClient(cfg.Hub.URL, cfg.Hub.Timeout)
		logger.Info("Agent hub delegation enabled", map[string]interface{}{
			"url": cfg.Hub.URL,
		})
	}
	local := orchestrator.NewLocalOrchestrator(propertyRepo, ix, auditRepo, logger)

	svc := service.NewIntelligenceService(
		provider,
		embeddingRepo,
		searchEngine,
		hydrator,
		ix,
		commandEngine,
		hub,
		local,
		logger,
		m,
	)

	apiServer := startAPIServer(cfg, svc, logger)
	healthServer := startHealthServer(cfg, db, registry, logger)

	sig := <-sigChan
	logger.Info("Received shutdown signal", map[string]interface{}{
		"signal": sig.String(),
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown API server", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown health server", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cancel()
	logger.Info("Shutdown complete", nil)
}

// connectDatabase establishes a database connection with retry logic
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig, logger observability.Logger) (*sqlx.DB, error) {
	maxRetries := 10
	baseDelay := 1 * time.Second

	logger.Info("Connecting to database", map[string]interface{}{
		"host":     cfg.Host,
		"database": cfg.Database,
	})

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
		if err == nil {
			db.SetMaxOpenConns(cfg.MaxConns)
			db.SetMaxIdleConns(cfg.MaxIdleConns)
			logger.Info("Database connection established", nil)
			return db, nil
		}
		lastErr = err

		if i < maxRetries-1 {
			delay := baseDelay * (1 << uint(i))
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}

			logger.Warn("Database connection failed, retrying...", map[string]interface{}{
				"attempt":      i + 1,
				"max_attempts": maxRetries,
				"delay":        delay.String(),
				"error":        err.Error(),
			})

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, lastErr)
}

// connectRedis connects to Redis and verifies the connection
func connectRedis(ctx context.Context, cfg config.RedisConfig, logger observability.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.Database,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("Redis connection established", map[string]interface{}{
		"address": cfg.Address,
	})

	return client, nil
}

// startAPIServer starts the HTTP API server
func startAPIServer(cfg *config.Config, svc *service.IntelligenceService, logger observability.Logger) *http.Server {
	if cfg.Service.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	handler := api.NewHandler(svc, logger)

	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.TenantScope(cfg.Tenant.DefaultID))
	handler.RegisterRoutes(apiGroup)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting API server", map[string]interface{}{
			"port": cfg.Service.Port,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return server
}

// startHealthServer starts the health check and metrics endpoint
func startHealthServer(cfg *config.Config, db *sqlx.DB, registry *prometheus.Registry, logger observability.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "unhealthy: %v", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "healthy")
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "not ready: %v", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "ready")
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.MetricsPort),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting health and metrics server", map[string]interface{}{
			"port": cfg.Service.MetricsPort,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return server
}
