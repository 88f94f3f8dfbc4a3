// Package handlers provides the HTTP handlers for the billing API.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photonvault/billing/internal/api/middleware"
	"github.com/photonvault/billing/internal/billing"
	"github.com/photonvault/billing/internal/entitlement"
	"github.com/photonvault/billing/internal/rtdn"
	"github.com/photonvault/billing/internal/storefront"
	"github.com/rs/zerolog"
)

// BillingService is the interface for the purchase verification and
// usage reporting flows.
type BillingService interface {
	VerifyAndroid(ctx context.Context, in billing.VerifyAndroidInput) error
	VerifyIOS(ctx context.Context, in billing.VerifyIOSInput) error
	Usage(ctx context.Context, userID string) (*billing.UsageReport, error)
	Entitlement(userID string) (entitlement.Entitlement, bool)
}

// NotificationProcessor handles storefront push notifications.
type NotificationProcessor interface {
	Process(ctx context.Context, env rtdn.Envelope)
}

// BillingHandler handles billing HTTP endpoints.
type BillingHandler struct {
	service   BillingService
	processor NotificationProcessor
	logger    zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(service BillingService, processor NotificationProcessor, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{
		service:   service,
		processor: processor,
		logger:    logger.With().Str("component", "billing_handler").Logger(),
	}
}

// RegisterRoutes registers the identity-authenticated billing routes.
func (h *BillingHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/iap/android/verify", h.VerifyAndroid)
	r.POST("/iap/ios/verify", h.VerifyIOS)
	r.GET("/usage", h.Usage)
	r.GET("/entitlements", h.Entitlements)
}

// RegisterPublicRoutes registers routes called by storefront push
// infrastructure rather than end users.
func (h *BillingHandler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/iap/android/rtdn", h.AndroidNotification)
}

type verifyAndroidRequest struct {
	ProductID     string `json:"productId" binding:"required"`
	PurchaseToken string `json:"purchaseToken" binding:"required"`
	PackageName   string `json:"packageName" binding:"required"`
}

// VerifyAndroid verifies a Google Play subscription purchase for the caller.
// POST /billing/iap/android/verify
func (h *BillingHandler) VerifyAndroid(c *gin.Context) {
	var req verifyAndroidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "productId, purchaseToken and packageName are required"})
		return
	}

	identity := middleware.GetIdentity(c)
	err := h.service.VerifyAndroid(c.Request.Context(), billing.VerifyAndroidInput{
		UserID:        identity.UserID,
		UserEmail:     identity.Email,
		ProductID:     req.ProductID,
		PurchaseToken: req.PurchaseToken,
		PackageName:   req.PackageName,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type verifyIOSRequest struct {
	ProductID   string `json:"productId" binding:"required"`
	ReceiptData string `json:"receiptData" binding:"required"`
}

// VerifyIOS verifies an App Store receipt for the caller.
// POST /billing/iap/ios/verify
func (h *BillingHandler) VerifyIOS(c *gin.Context) {
	var req verifyIOSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "productId and receiptData are required"})
		return
	}

	identity := middleware.GetIdentity(c)
	err := h.service.VerifyIOS(c.Request.Context(), billing.VerifyIOSInput{
		UserID:      identity.UserID,
		UserEmail:   identity.Email,
		ProductID:   req.ProductID,
		ReceiptData: req.ReceiptData,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AndroidNotification ingests a Google Play push notification. The
// push contract expects a success acknowledgement regardless of
// processing outcome; anything else triggers unbounded redelivery.
// POST /billing/iap/android/rtdn
func (h *BillingHandler) AndroidNotification(c *gin.Context) {
	var env rtdn.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		h.logger.Warn().Err(err).Msg("unreadable push envelope")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	h.processor.Process(c.Request.Context(), env)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Usage reports the caller's storage consumption and pressure state.
// GET /billing/usage
func (h *BillingHandler) Usage(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	report, err := h.service.Usage(c.Request.Context(), identity.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Entitlements returns the caller's current entitlement, or null if
// none exists.
// GET /billing/entitlements
func (h *BillingHandler) Entitlements(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	ent, ok := h.service.Entitlement(identity.UserID)
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}

	c.JSON(http.StatusOK, ent)
}

// writeError maps flow errors onto HTTP statuses.
func (h *BillingHandler) writeError(c *gin.Context, err error) {
	var upstream *storefront.UpstreamError

	switch {
	case errors.Is(err, billing.ErrUnknownProduct):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, storefront.ErrExpired):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, storefront.ErrNotConfigured):
		h.logger.Error().Err(err).Msg("verification misconfigured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification is not configured"})
	case errors.As(err, &upstream):
		h.logger.Error().Err(err).Msg("upstream call failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream service unavailable"})
	default:
		h.logger.Error().Err(err).Msg("billing request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
