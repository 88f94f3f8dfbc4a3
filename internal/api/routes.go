// Package api provides the HTTP API for the billing server.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/photonvault/billing/internal/api/handlers"
	"github.com/photonvault/billing/internal/api/middleware"
	"github.com/photonvault/billing/internal/config"
	"github.com/photonvault/billing/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config holds configuration for the API router.
type Config struct {
	// Environment controls CORS strictness and gin mode.
	Environment config.Environment
	// AllowedOrigins for CORS. Empty means all origins allowed in dev mode.
	AllowedOrigins []string
	// RateLimit is a limiter rate string, e.g. "120-M".
	RateLimit string
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// Deps carries the collaborators the routes are built on.
type Deps struct {
	Service   handlers.BillingService
	Processor handlers.NotificationProcessor
	Identity  middleware.IdentityResolver
	Account   handlers.Pinger
	Redis     *redis.Client // nil disables the redis health check
	Metrics   *metrics.Metrics
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(cfg Config, deps Deps, logger zerolog.Logger) (*Router, error) {
	if cfg.Environment == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestID())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.CORS(cfg.AllowedOrigins, cfg.Environment))

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(rateLimiter)

	// Health check endpoints (no auth required)
	var redisPing handlers.Pinger
	if deps.Redis != nil {
		redisPing = redisPinger{deps.Redis}
	}
	healthHandler := handlers.NewHealthHandler(deps.Account, redisPing, logger)
	healthHandler.RegisterPublicRoutes(r.Engine)

	// Prometheus metrics endpoint (no auth required)
	metricsHandler := handlers.NewMetricsHandler(deps.Metrics)
	metricsHandler.RegisterPublicRoutes(r.Engine)

	billingHandler := handlers.NewBillingHandler(deps.Service, deps.Processor, logger)

	// Storefront push endpoint; the push infrastructure is the caller,
	// so no user identity is required.
	pushGroup := r.Engine.Group("/billing")
	billingHandler.RegisterPublicRoutes(pushGroup)

	// User-facing billing routes (identity required)
	billingGroup := r.Engine.Group("/billing")
	billingGroup.Use(middleware.RequireIdentity(deps.Identity, logger))
	billingHandler.RegisterRoutes(billingGroup)

	return r, nil
}

// redisPinger adapts a redis client to the health checker interface.
type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
