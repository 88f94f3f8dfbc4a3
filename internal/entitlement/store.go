// Package entitlement keeps the latest verified entitlement per user
// together with a reverse index from storefront purchase tokens to
// users.
package entitlement

import (
	"context"
	"sync"

	"github.com/photonvault/billing/internal/catalog"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Entitlement is the current storage/feature plan attributed to a
// user, derived from a verified purchase. One record per user,
// latest write wins.
type Entitlement struct {
	UserID         string                `json:"userId"`
	UserEmail      string                `json:"userEmail,omitempty"`
	ProductID      string                `json:"productId"`
	PlanCode       string                `json:"planCode"`
	StorageLimitGB float64               `json:"storageLimitGb"`
	Tier           catalog.Tier          `json:"tier,omitempty"`
	Seats          int                   `json:"seats,omitempty"`
	ShareEnabled   bool                  `json:"shareEnabled,omitempty"`
	Period         catalog.BillingPeriod `json:"period,omitempty"`
	ExpiresAtMs    int64                 `json:"expiresAtMs,omitempty"`
	PurchaseToken  string                `json:"purchaseToken,omitempty"`
	Platform       string                `json:"platform,omitempty"`
}

// TokenRef resolves a purchase token back to the user that presented
// it at verification time.
type TokenRef struct {
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail,omitempty"`
	ProductID string `json:"productId"`
}

// Store is a concurrency-safe entitlement registry. Memory is
// authoritative; when a Redis client is configured every write is
// persisted through to it and records are reloaded at startup. Redis
// failures are logged and never fail a mutation.
type Store struct {
	mu           sync.RWMutex
	entitlements map[string]Entitlement
	tokens       map[string]TokenRef

	rdb    *redis.Client
	logger zerolog.Logger
}

// NewStore creates an entitlement store. rdb may be nil for a purely
// transient store.
func NewStore(rdb *redis.Client, logger zerolog.Logger) *Store {
	return &Store{
		entitlements: make(map[string]Entitlement),
		tokens:       make(map[string]TokenRef),
		rdb:          rdb,
		logger:       logger.With().Str("component", "entitlement_store").Logger(),
	}
}

// Get returns the latest entitlement for a user.
func (s *Store) Get(userID string) (Entitlement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ent, ok := s.entitlements[userID]
	return ent, ok
}

// Put overwrites the user's entitlement record. The write is atomic
// per key; concurrent writers for the same user follow
// last-write-wins.
func (s *Store) Put(ctx context.Context, ent Entitlement) {
	s.mu.Lock()
	s.entitlements[ent.UserID] = ent
	s.mu.Unlock()

	s.persistEntitlement(ctx, ent)
}

// RegisterToken records the purchase-token → user mapping used to
// resolve asynchronous storefront notifications.
func (s *Store) RegisterToken(ctx context.Context, token string, ref TokenRef) {
	if token == "" {
		return
	}

	s.mu.Lock()
	s.tokens[token] = ref
	s.mu.Unlock()

	s.persistToken(ctx, token, ref)
}

// ResolveToken maps a purchase token to a user. It consults the
// reverse index first and falls back to a linear scan over stored
// entitlements for a matching token.
func (s *Store) ResolveToken(token string) (TokenRef, bool) {
	if token == "" {
		return TokenRef{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if ref, ok := s.tokens[token]; ok {
		return ref, true
	}

	for _, ent := range s.entitlements {
		if ent.PurchaseToken == token {
			return TokenRef{UserID: ent.UserID, UserEmail: ent.UserEmail, ProductID: ent.ProductID}, true
		}
	}

	return TokenRef{}, false
}

// Count returns the number of entitlement records held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entitlements)
}
