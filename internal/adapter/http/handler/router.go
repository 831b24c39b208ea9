package handler

import (
	"time"

	"mybank/internal/adapter/http/middleware"
	redisStore "mybank/internal/adapter/storage/redis"
	"mybank/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AccountSvc     ports.AccountService
	SyncDesk       ports.TransferDesk
	Tracker        ports.TransferTracker
	AsyncMetrics   ports.QueueMetrics
	SyncMetrics    ports.QueueMetrics
	IdempCache     ports.IdempotencyCache // nil = Idempotency-Key ignored
	IdempTTL       time.Duration
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	RateLimitRules map[string]middleware.RateLimitRule
	HealthCheckers []ports.HealthChecker
	MaxBodyBytes   int64
	Mode           string // gin mode; release when empty
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode == "" {
		deps.Mode = gin.ReleaseMode
	}
	gin.SetMode(deps.Mode)
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	// Global middleware
	r.Use(middleware.RequestID(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))

	// Health check (deep, verifies storage and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := deps.RateLimitRules[group]
		if !ok || rule.Limit <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	accountHandler := NewAccountHandler(deps.AccountSvc)
	accounts := v1.Group("/accounts", rl(middleware.GroupAccounts))
	{
		accounts.POST("", accountHandler.Create)
		accounts.GET("", accountHandler.List)
		accounts.GET("/total", accountHandler.Total)
		accounts.GET("/:id", accountHandler.Get)
	}

	transferHandler := NewTransferHandler(deps.SyncDesk, deps.Tracker, deps.IdempCache, deps.IdempTTL, deps.Logger)
	transfers := v1.Group("/transfers", rl(middleware.GroupTransfers))
	{
		transfers.POST("", transferHandler.Transfer)
		transfers.POST("/async", transferHandler.SubmitAsync)
		transfers.GET("/:id", transferHandler.Status)
	}

	metricsHandler := NewMetricsHandler(deps.AsyncMetrics, deps.SyncMetrics)
	queue := v1.Group("/metrics/queue", rl(middleware.GroupMetrics))
	{
		queue.GET("", metricsHandler.AsyncReport)
		queue.GET("/sync", metricsHandler.SyncReport)
		queue.POST("/reset", metricsHandler.Reset)
	}

	return r
}
