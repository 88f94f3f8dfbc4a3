package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/photonvault/billing/internal/metrics"
)

// MetricsHandler exposes Prometheus metrics.
type MetricsHandler struct {
	metrics *metrics.Metrics
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(m *metrics.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: m}
}

// RegisterPublicRoutes registers the metrics endpoint.
func (h *MetricsHandler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
}
