// Package rtdn processes Google Play real-time developer
// notifications delivered over Pub/Sub push.
package rtdn

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/photonvault/billing/internal/catalog"
	"github.com/photonvault/billing/internal/entitlement"
	"github.com/photonvault/billing/internal/metrics"
	"github.com/photonvault/billing/internal/notify"
	"github.com/photonvault/billing/internal/storefront"
	"github.com/rs/zerolog"
)

// Envelope is the Pub/Sub push wrapper around the notification
// payload.
type Envelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// developerNotification is the decoded payload inside Envelope.Message.Data.
type developerNotification struct {
	Version                  string `json:"version"`
	PackageName              string `json:"packageName"`
	EventTimeMillis          string `json:"eventTimeMillis"`
	SubscriptionNotification *struct {
		Version          string `json:"version"`
		NotificationType int    `json:"notificationType"`
		PurchaseToken    string `json:"purchaseToken"`
		SubscriptionID   string `json:"subscriptionId"`
	} `json:"subscriptionNotification"`
}

// AndroidVerifier re-reads the authoritative subscription state.
type AndroidVerifier interface {
	Verify(ctx context.Context, productID, purchaseToken, packageName string) (*storefront.Result, error)
}

// AccountClient pushes quota updates to the account system.
type AccountClient interface {
	UpdateQuota(ctx context.Context, userID string, quotaBytes *int64) error
}

// Notifier forwards verified-purchase events downstream.
type Notifier interface {
	Notify(ctx context.Context, event notify.VerifiedPurchaseEvent) error
}

// Processor reconciles subscription notifications against the
// storefront and the entitlement store. Processing is best-effort:
// nothing it does ever surfaces an error to the push sender.
type Processor struct {
	store    *entitlement.Store
	verifier AndroidVerifier
	account  AccountClient
	notifier Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewProcessor creates an RTDN processor.
func NewProcessor(store *entitlement.Store, verifier AndroidVerifier, acct AccountClient, notifier Notifier, m *metrics.Metrics, logger zerolog.Logger) *Processor {
	return &Processor{
		store:    store,
		verifier: verifier,
		account:  acct,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With().Str("component", "rtdn").Logger(),
	}
}

// Process decodes and reconciles one push envelope. Malformed or
// unresolvable notifications are logged and dropped; every reconciled
// notification is treated as "re-verify and refresh" regardless of
// its lifecycle type code, which only gets logged. Duplicate delivery
// is safe because the entitlement overwrite is idempotent per user.
func (p *Processor) Process(ctx context.Context, env Envelope) {
	raw, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		p.discard("payload is not valid base64")
		return
	}

	var note developerNotification
	if err := json.Unmarshal(raw, &note); err != nil {
		p.discard("payload is not valid JSON")
		return
	}

	sub := note.SubscriptionNotification
	if sub == nil || note.PackageName == "" || sub.SubscriptionID == "" || sub.PurchaseToken == "" {
		p.discard("notification is missing required fields")
		return
	}

	p.logger.Debug().
		Int("notification_type", sub.NotificationType).
		Str("subscription_id", sub.SubscriptionID).
		Msg("processing subscription notification")

	res, err := p.verifier.Verify(ctx, sub.SubscriptionID, sub.PurchaseToken, note.PackageName)
	if err != nil {
		p.logger.Warn().Err(err).
			Str("subscription_id", sub.SubscriptionID).
			Msg("subscription re-verification failed, dropping notification")
		p.metrics.RTDNEvents.WithLabelValues(metrics.OutcomeUpstream).Inc()
		return
	}

	ref, ok := p.store.ResolveToken(sub.PurchaseToken)
	if !ok {
		p.logger.Error().
			Str("subscription_id", sub.SubscriptionID).
			Msg("no entitlement matches the purchase token, cannot attribute notification")
		p.metrics.RTDNEvents.WithLabelValues(metrics.OutcomeDiscarded).Inc()
		return
	}

	if entry, known := catalog.Lookup(sub.SubscriptionID); known {
		p.refreshEntitlement(ctx, ref, entry, sub.SubscriptionID, sub.PurchaseToken, res.ExpiryMs)
	} else {
		p.logger.Warn().
			Str("subscription_id", sub.SubscriptionID).
			Str("user_id", ref.UserID).
			Msg("notification references a product outside the catalog, skipping quota update")
	}

	event := notify.VerifiedPurchaseEvent{
		Email:        ref.UserEmail,
		ProductID:    sub.SubscriptionID,
		Platform:     string(storefront.PlatformAndroid),
		AmountMicros: res.PriceAmountMicros,
		Currency:     res.PriceCurrencyCode,
		PeriodEndMs:  res.ExpiryMs,
	}
	if err := p.notifier.Notify(ctx, event); err != nil {
		p.logger.Warn().Err(err).Msg("downstream notification failed")
		p.metrics.DownstreamEvents.WithLabelValues(metrics.OutcomeError).Inc()
	} else {
		p.metrics.DownstreamEvents.WithLabelValues(metrics.OutcomeOK).Inc()
	}

	p.metrics.RTDNEvents.WithLabelValues(metrics.OutcomeOK).Inc()
}

// refreshEntitlement mirrors the synchronous verification flow: quota
// update first, entitlement overwrite last. A quota failure leaves the
// previous record untouched.
func (p *Processor) refreshEntitlement(ctx context.Context, ref entitlement.TokenRef, entry catalog.Entry, productID, token string, expiryMs int64) {
	quota := catalog.QuotaBytes(entry.StorageLimitGB)
	if err := p.account.UpdateQuota(ctx, ref.UserID, &quota); err != nil {
		p.logger.Error().Err(err).
			Str("user_id", ref.UserID).
			Msg("quota update failed during notification reconcile")
		p.metrics.QuotaUpdates.WithLabelValues(metrics.OutcomeError).Inc()
		return
	}
	p.metrics.QuotaUpdates.WithLabelValues(metrics.OutcomeOK).Inc()

	p.store.Put(ctx, entitlement.Entitlement{
		UserID:         ref.UserID,
		UserEmail:      ref.UserEmail,
		ProductID:      productID,
		PlanCode:       entry.PlanCode,
		StorageLimitGB: entry.StorageLimitGB,
		Tier:           entry.Tier,
		Seats:          entry.Seats,
		ShareEnabled:   entry.ShareEnabled,
		Period:         entry.Period,
		ExpiresAtMs:    expiryMs,
		PurchaseToken:  token,
		Platform:       string(storefront.PlatformAndroid),
	})

	p.logger.Info().
		Str("user_id", ref.UserID).
		Str("plan_code", entry.PlanCode).
		Int64("expires_at_ms", expiryMs).
		Msg("entitlement refreshed from subscription notification")
}

func (p *Processor) discard(reason string) {
	p.logger.Warn().Msg("discarding push notification: " + reason)
	p.metrics.RTDNEvents.WithLabelValues(metrics.OutcomeInvalid).Inc()
}
