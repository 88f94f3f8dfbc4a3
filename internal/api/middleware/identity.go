// Package middleware provides HTTP middleware for the billing API.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by this package.
type ContextKey string

// IdentityContextKey is the context key for the authenticated caller.
const IdentityContextKey ContextKey = "identity"

// Identity is the authenticated caller as established by the external
// session layer.
type Identity struct {
	UserID string
	Email  string
}

// IdentityResolver extracts the caller identity from a request.
// Session management lives outside this service; the resolver only
// reads whatever proof the fronting layer attaches.
type IdentityResolver interface {
	Resolve(r *http.Request) (Identity, error)
}

// ErrNoIdentity is returned when a request carries no usable identity.
var ErrNoIdentity = errors.New("no authenticated user")

// HeaderIdentityResolver trusts identity headers injected by the
// gateway in front of this service. It must never be exposed to
// direct client traffic.
type HeaderIdentityResolver struct {
	// UserIDHeader defaults to X-User-Id.
	UserIDHeader string
	// EmailHeader defaults to X-User-Email.
	EmailHeader string
}

func (h HeaderIdentityResolver) Resolve(r *http.Request) (Identity, error) {
	idHeader := h.UserIDHeader
	if idHeader == "" {
		idHeader = "X-User-Id"
	}
	emailHeader := h.EmailHeader
	if emailHeader == "" {
		emailHeader = "X-User-Email"
	}

	id := r.Header.Get(idHeader)
	if id == "" {
		return Identity{}, ErrNoIdentity
	}
	return Identity{UserID: id, Email: r.Header.Get(emailHeader)}, nil
}

// RequireIdentity returns a Gin middleware that rejects requests
// without a resolvable caller identity.
func RequireIdentity(resolver IdentityResolver, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "identity_middleware").Logger()

	return func(c *gin.Context) {
		identity, err := resolver.Resolve(c.Request)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("unauthenticated request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set(string(IdentityContextKey), identity)
		c.Next()
	}
}

// GetIdentity retrieves the authenticated caller from the Gin context.
// Returns the zero Identity when the middleware did not run.
func GetIdentity(c *gin.Context) Identity {
	v, ok := c.Get(string(IdentityContextKey))
	if !ok {
		return Identity{}
	}
	identity, ok := v.(Identity)
	if !ok {
		return Identity{}
	}
	return identity
}
