package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/photonvault/billing/internal/config"
	"github.com/rs/zerolog"
)

func TestRedactQueryString(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"empty", "", ""},
		{"no sensitive params", "page=2&sort=asc", "page=2&sort=asc"},
		{"token redacted", "token=secret123", "token=%5BREDACTED%5D"},
		{"receipt redacted", "receipt=abc&page=1", "page=1&receipt=%5BREDACTED%5D"},
		{"case insensitive", "TOKEN=secret123", "TOKEN=%5BREDACTED%5D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactQueryString(tt.query); got != tt.want {
				t.Errorf("redactQueryString(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestRequireIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireIdentity(HeaderIdentityResolver{}, zerolog.Nop()))
	r.GET("/whoami", func(c *gin.Context) {
		identity := GetIdentity(c)
		c.JSON(http.StatusOK, gin.H{"user_id": identity.UserID, "email": identity.Email})
	})

	t.Run("missing identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("identity propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-User-Id", "user-1")
		req.Header.Set("X-User-Email", "user@example.com")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "user-1") {
			t.Errorf("user id missing from response: %s", w.Body.String())
		}
	})
}

func TestHeaderIdentityResolverCustomHeaders(t *testing.T) {
	resolver := HeaderIdentityResolver{UserIDHeader: "X-Auth-Subject", EmailHeader: "X-Auth-Email"}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Auth-Subject", "user-9")

	identity, err := resolver.Resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UserID != "user-9" {
		t.Errorf("expected user-9, got %q", identity.UserID)
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("generates id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Header().Get("X-Request-Id") == "" {
			t.Error("expected generated request id")
		}
	})

	t.Run("preserves caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-Id", "req-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if got := w.Header().Get("X-Request-Id"); got != "req-123" {
			t.Errorf("expected req-123, got %q", got)
		}
	})
}

func TestCORSAllowedOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}, config.EnvDevelopment))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow-origin for unlisted origin: %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}, config.EnvDevelopment))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", w.Code)
	}
}

func TestCORSPanicsInProductionWithoutOrigins(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for empty origins in production")
		}
	}()
	CORS(nil, config.EnvProduction)
}

func TestNewRateLimiter(t *testing.T) {
	if _, err := NewRateLimiter("120-M"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewRateLimiter("not-a-rate"); err == nil {
		t.Fatal("expected error for malformed rate")
	}
}
