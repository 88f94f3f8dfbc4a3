// Package main is the entrypoint for the billing server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/photonvault/billing/internal/account"
	"github.com/photonvault/billing/internal/api"
	"github.com/photonvault/billing/internal/api/middleware"
	"github.com/photonvault/billing/internal/billing"
	"github.com/photonvault/billing/internal/config"
	"github.com/photonvault/billing/internal/entitlement"
	"github.com/photonvault/billing/internal/metrics"
	"github.com/photonvault/billing/internal/notify"
	"github.com/photonvault/billing/internal/rtdn"
	"github.com/photonvault/billing/internal/storefront"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != string(config.EnvProduction) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("Starting billing server")

	// Load configuration
	cfg := config.LoadServerConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		overlay, err := config.LoadFile(path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("Failed to load config file")
			return 1
		}
		overlay.Apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
		return 1
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Optional Redis persistence for entitlements
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to parse REDIS_URL")
			return 1
		}
		rdb = redis.NewClient(redisOpts)
		defer rdb.Close()
	}

	store := entitlement.NewStore(rdb, logger)
	if rdb != nil {
		if err := store.Load(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to load entitlements from redis (continuing with empty store)")
		}
	}

	m := metrics.New()

	// Storefront verifiers
	var androidVerifier billing.AndroidVerifier
	av, err := storefront.NewAndroidVerifier(ctx, storefront.AndroidOptions{BaseURL: cfg.AndroidAPIBaseURL}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Google credentials unavailable, Android verification disabled")
		androidVerifier = unconfiguredAndroidVerifier{}
	} else {
		androidVerifier = av
	}

	iosVerifier := storefront.NewIOSVerifier(storefront.IOSOptions{
		SharedSecret: cfg.AppleSharedSecret,
		Endpoint:     cfg.IOSReceiptEndpoint,
	}, logger)

	// External collaborators
	accountClient := account.NewClient(account.Options{
		BaseURL:      cfg.AccountBaseURL,
		ServiceToken: cfg.AccountServiceToken,
	}, logger)

	downstream := notify.NewDownstream(notify.Options{
		BaseURL: cfg.DownstreamBaseURL,
		Secret:  cfg.InternalAPIKey,
	}, logger)
	if !downstream.Enabled() {
		logger.Warn().Msg("DOWNSTREAM_NOTIFY_URL not set, verified-purchase events will not be forwarded")
	}

	service := billing.NewService(store, androidVerifier, iosVerifier, accountClient, m, logger)
	processor := rtdn.NewProcessor(store, androidVerifier, accountClient, downstream, m, logger)

	routerCfg := api.Config{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.CORSOrigins,
		RateLimit:      cfg.RateLimit,
	}

	router, err := api.NewRouter(routerCfg, api.Deps{
		Service:   service,
		Processor: processor,
		Identity:  middleware.HeaderIdentityResolver{},
		Account:   accountClient,
		Redis:     rdb,
		Metrics:   m,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		return 1
	}

	logger.Info().Msg("Server stopped gracefully")
	return 0
}

// unconfiguredAndroidVerifier fails every verification with a
// configuration error instead of taking the whole server down when
// Google credentials are absent.
type unconfiguredAndroidVerifier struct{}

func (unconfiguredAndroidVerifier) Verify(context.Context, string, string, string) (*storefront.Result, error) {
	return nil, storefront.ErrNotConfigured
}
