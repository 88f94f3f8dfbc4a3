// Package config provides configuration management for the billing
// server.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds server-level configuration loaded from environment variables.
type ServerConfig struct {
	Environment Environment
	ListenAddr  string   // host:port the HTTP server binds to
	CORSOrigins []string // allowed browser origins, empty means same-origin only
	RateLimit   string   // limiter format, e.g. "120-M" = 120 requests per minute
	RedisURL    string   // optional, enables entitlement persistence
	Debug       bool     // lowers the log level to debug

	// Storefront credentials.
	AppleSharedSecret  string // required for iOS receipt verification
	IOSReceiptEndpoint string // override for the production verify endpoint
	AndroidAPIBaseURL  string // override for the Google Play publisher API

	// External account system.
	AccountBaseURL      string
	AccountServiceToken string

	// Downstream verified-purchase notifications. Empty base URL
	// disables forwarding.
	DownstreamBaseURL string
	InternalAPIKey    string
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() ServerConfig {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	port := getEnvInt("PORT", 8080)
	if port <= 0 || port > 65535 {
		port = 8080
	}
	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":" + strconv.Itoa(port)
	}

	var origins []string
	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return ServerConfig{
		Environment: env,
		ListenAddr:  listenAddr,
		CORSOrigins: origins,
		RateLimit:   getEnv("RATE_LIMIT", "120-M"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Debug:       getEnvBool("DEBUG", false),

		AppleSharedSecret:  os.Getenv("APPLE_IAP_SHARED_SECRET"),
		IOSReceiptEndpoint: os.Getenv("IOS_RECEIPT_ENDPOINT"),
		AndroidAPIBaseURL:  os.Getenv("ANDROID_PUBLISHER_API_URL"),

		AccountBaseURL:      os.Getenv("ACCOUNT_API_URL"),
		AccountServiceToken: os.Getenv("ACCOUNT_SERVICE_TOKEN"),

		DownstreamBaseURL: os.Getenv("DOWNSTREAM_NOTIFY_URL"),
		InternalAPIKey:    os.Getenv("INTERNAL_API_KEY"),
	}
}

// Validate checks that the configuration has required fields for operation.
// Storefront secrets are deliberately not required here: their absence
// fails the individual verification request, not server startup.
func (c *ServerConfig) Validate() error {
	if c.AccountBaseURL == "" {
		return errors.New("ACCOUNT_API_URL is required")
	}
	if c.Environment == EnvProduction && c.AccountServiceToken == "" {
		return errors.New("ACCOUNT_SERVICE_TOKEN is required in production")
	}
	return nil
}

// getEnv reads a string from an environment variable, returning the default if unset.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
