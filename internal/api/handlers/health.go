package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult represents the result of a health check.
type HealthCheckResult struct {
	Status   HealthStatus `json:"status"`
	Duration string       `json:"duration,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status HealthStatus                  `json:"status"`
	Checks map[string]*HealthCheckResult `json:"checks,omitempty"`
}

// Pinger checks reachability of an external collaborator.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health-related HTTP endpoints.
type HealthHandler struct {
	account Pinger
	redis   Pinger // nil when persistence is disabled
	logger  zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(account Pinger, redis Pinger, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		account: account,
		redis:   redis,
		logger:  logger.With().Str("component", "health_handler").Logger(),
	}
}

// RegisterPublicRoutes registers health check routes that don't require authentication.
func (h *HealthHandler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/health", h.Overall)
	r.GET("/health/live", h.Live)
}

// Overall returns the overall server health status.
// GET /health
func (h *HealthHandler) Overall(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := &HealthResponse{
		Status: HealthStatusHealthy,
		Checks: make(map[string]*HealthCheckResult),
	}

	response.Checks["account"] = h.check(ctx, h.account)
	if h.redis != nil {
		response.Checks["redis"] = h.check(ctx, h.redis)
	}

	status := http.StatusOK
	for _, result := range response.Checks {
		if result.Status == HealthStatusUnhealthy {
			response.Status = HealthStatusUnhealthy
			status = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(status, response)
}

// Live is a trivial liveness probe.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) check(ctx context.Context, p Pinger) *HealthCheckResult {
	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("health check failed")
		return &HealthCheckResult{
			Status:   HealthStatusUnhealthy,
			Duration: time.Since(start).String(),
			Error:    err.Error(),
		}
	}
	return &HealthCheckResult{
		Status:   HealthStatusHealthy,
		Duration: time.Since(start).String(),
	}
}
