// Package billing orchestrates receipt verification, quota
// propagation, and entitlement bookkeeping.
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/photonvault/billing/internal/account"
	"github.com/photonvault/billing/internal/catalog"
	"github.com/photonvault/billing/internal/entitlement"
	"github.com/photonvault/billing/internal/metrics"
	"github.com/photonvault/billing/internal/storefront"
	"github.com/rs/zerolog"
)

// ErrUnknownProduct is returned when a storefront presents a product
// ID that the catalog does not know.
var ErrUnknownProduct = errors.New("unknown productId")

// AndroidVerifier verifies Google Play subscription purchases.
type AndroidVerifier interface {
	Verify(ctx context.Context, productID, purchaseToken, packageName string) (*storefront.Result, error)
}

// IOSVerifier verifies App Store receipts.
type IOSVerifier interface {
	Verify(ctx context.Context, productID, receiptData string) (*storefront.Result, error)
}

// AccountClient is the slice of the account system this service needs.
type AccountClient interface {
	UpdateQuota(ctx context.Context, userID string, quotaBytes *int64) error
	GetUserProfile(ctx context.Context, userID string) (*account.Profile, error)
}

// Service implements the purchase verification flow and the usage
// reporter.
type Service struct {
	store   *entitlement.Store
	android AndroidVerifier
	ios     IOSVerifier
	account AccountClient
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewService creates a billing service.
func NewService(store *entitlement.Store, android AndroidVerifier, ios IOSVerifier, acct AccountClient, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		android: android,
		ios:     ios,
		account: acct,
		metrics: m,
		logger:  logger.With().Str("component", "billing_service").Logger(),
	}
}

// VerifyAndroidInput is a client-initiated Android verification claim.
type VerifyAndroidInput struct {
	UserID        string
	UserEmail     string
	ProductID     string
	PurchaseToken string
	PackageName   string
}

// VerifyAndroid verifies an Android subscription purchase and syncs
// quota and entitlement. Steps run strictly in order; no step is
// rolled back when a later one fails, and the entitlement write is
// always last so a failure cannot leave a record pointing at an
// unconfirmed quota.
func (s *Service) VerifyAndroid(ctx context.Context, in VerifyAndroidInput) error {
	res, err := s.android.Verify(ctx, in.ProductID, in.PurchaseToken, in.PackageName)
	s.countVerification(string(storefront.PlatformAndroid), err)
	if err != nil {
		return err
	}

	ent, err := s.applyPurchase(ctx, purchase{
		userID:    in.UserID,
		userEmail: in.UserEmail,
		productID: in.ProductID,
		expiryMs:  res.ExpiryMs,
		token:     in.PurchaseToken,
		platform:  string(storefront.PlatformAndroid),
	})
	if err != nil {
		return err
	}

	s.store.RegisterToken(ctx, in.PurchaseToken, entitlement.TokenRef{
		UserID:    in.UserID,
		UserEmail: in.UserEmail,
		ProductID: in.ProductID,
	})

	s.logger.Info().
		Str("user_id", in.UserID).
		Str("product_id", in.ProductID).
		Str("plan_code", ent.PlanCode).
		Msg("android purchase verified")
	return nil
}

// VerifyIOSInput is a client-initiated iOS verification claim.
type VerifyIOSInput struct {
	UserID      string
	UserEmail   string
	ProductID   string
	ReceiptData string
}

// VerifyIOS verifies an App Store receipt and syncs quota and
// entitlement.
func (s *Service) VerifyIOS(ctx context.Context, in VerifyIOSInput) error {
	res, err := s.ios.Verify(ctx, in.ProductID, in.ReceiptData)
	s.countVerification(string(storefront.PlatformIOS), err)
	if err != nil {
		return err
	}

	ent, err := s.applyPurchase(ctx, purchase{
		userID:    in.UserID,
		userEmail: in.UserEmail,
		productID: in.ProductID,
		expiryMs:  res.ExpiryMs,
		platform:  string(storefront.PlatformIOS),
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("user_id", in.UserID).
		Str("product_id", in.ProductID).
		Str("plan_code", ent.PlanCode).
		Msg("ios purchase verified")
	return nil
}

// Entitlement returns the caller's current entitlement record.
func (s *Service) Entitlement(userID string) (entitlement.Entitlement, bool) {
	return s.store.Get(userID)
}

// purchase is the normalized result of a verified purchase, ready to
// be applied to quota and entitlement state.
type purchase struct {
	userID    string
	userEmail string
	productID string
	expiryMs  int64
	token     string
	platform  string
}

// applyPurchase resolves the catalog entry, pushes the new quota to
// the account system, then overwrites the entitlement record. The
// quota update is at-least-once from the caller's perspective.
func (s *Service) applyPurchase(ctx context.Context, p purchase) (*entitlement.Entitlement, error) {
	entry, ok := catalog.Lookup(p.productID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, p.productID)
	}

	quota := catalog.QuotaBytes(entry.StorageLimitGB)
	if err := s.account.UpdateQuota(ctx, p.userID, &quota); err != nil {
		s.metrics.QuotaUpdates.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	s.metrics.QuotaUpdates.WithLabelValues(metrics.OutcomeOK).Inc()

	ent := entitlement.Entitlement{
		UserID:         p.userID,
		UserEmail:      p.userEmail,
		ProductID:      p.productID,
		PlanCode:       entry.PlanCode,
		StorageLimitGB: entry.StorageLimitGB,
		Tier:           entry.Tier,
		Seats:          entry.Seats,
		ShareEnabled:   entry.ShareEnabled,
		Period:         entry.Period,
		ExpiresAtMs:    p.expiryMs,
		PurchaseToken:  p.token,
		Platform:       p.platform,
	}
	s.store.Put(ctx, ent)

	return &ent, nil
}

func (s *Service) countVerification(platform string, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, storefront.ErrExpired):
		outcome = metrics.OutcomeExpired
	case storefront.IsUpstream(err):
		outcome = metrics.OutcomeUpstream
	default:
		outcome = metrics.OutcomeError
	}
	s.metrics.Verifications.WithLabelValues(platform, outcome).Inc()
}
