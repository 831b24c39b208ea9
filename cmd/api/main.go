package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"mybank/config"
	httpHandler "mybank/internal/adapter/http/handler"
	"mybank/internal/adapter/http/middleware"
	"mybank/internal/adapter/storage/memory"
	pgStorage "mybank/internal/adapter/storage/postgres"
	redisStorage "mybank/internal/adapter/storage/redis"
	"mybank/internal/core/ports"
	"mybank/internal/metrics"
	"mybank/internal/service"
	"mybank/pkg/keylock"
	"mybank/pkg/logger"
	"mybank/pkg/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./config.yaml if present)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("version", version).
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Str("isolation", cfg.Engine.Isolation).
		Int("port", cfg.Server.Port).
		Msg("Starting mybank")

	ctx := context.Background()

	tp, err := telemetry.New(ctx, cfg.Telemetry, version, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	// Storage
	var (
		accountRepo ports.AccountRepository
		transactor  ports.DBTransactor
		checkers    []ports.HealthChecker
	)
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		log.Info().Msg("PostgreSQL connected")

		if err := pgStorage.EnsureSchema(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
		accountRepo = pgStorage.NewAccountRepo(pool)
		transactor = pgStorage.NewTransactor(pool)
		checkers = append(checkers, pgStorage.NewHealthCheck(pool))
	case config.StorageMemory:
		store := memory.NewStore(log)
		accountRepo = store
		transactor = store
		checkers = append(checkers, store)
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")
	checkers = append(checkers, redisStorage.NewHealthCheck(rdb))

	var rateLimitStore *redisStorage.RateLimitStore
	if cfg.RateLimit.Enabled {
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
	}

	// Transfer engine
	isolation, err := service.ParseIsolationPolicy(cfg.Engine.Isolation)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid isolation policy")
	}
	engine := service.NewTransferService(accountRepo, transactor, keylock.NewManager[string](log), isolation, log)

	// Desks
	asyncMetrics, err := metrics.New("async", metrics.WithMeterProvider(tp.MeterProvider()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create async desk metrics")
	}
	syncMetrics, err := metrics.New("sync", metrics.WithMeterProvider(tp.MeterProvider()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sync desk metrics")
	}

	syncDesk := service.NewSyncDesk(engine, syncMetrics, log)
	asyncDesk := service.NewAsyncDesk(engine, asyncMetrics, cfg.Desk.QueueCapacity, log)
	asyncDesk.Start()

	tracker := service.NewTransferTracker(asyncDesk, redisStorage.NewTransferStatusStore(rdb), cfg.Desk.StatusTTL, log)
	accountSvc := service.NewAccountService(accountRepo, log)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AccountSvc:     accountSvc,
		SyncDesk:       syncDesk,
		Tracker:        tracker,
		AsyncMetrics:   asyncMetrics,
		SyncMetrics:    syncMetrics,
		IdempCache:     redisStorage.NewIdempotencyCache(rdb),
		IdempTTL:       cfg.Idempotency.TTL,
		RateLimitStore: rateLimitStore,
		RateLimitRules: middleware.RateLimitRules(cfg.RateLimit),
		HealthCheckers: checkers,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// in-flight HTTP requests are done; let the worker finish what is queued
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Desk.ShutdownTimeout)
	defer cancelDrain()
	if err := asyncDesk.Shutdown(drainCtx); err != nil {
		log.Error().Err(err).Int("queued", asyncDesk.QueueLength()).Msg("Transfer desk did not drain in time")
	}

	if err := tp.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Telemetry shutdown failed")
	}

	log.Info().Msg("Server exited")
}
