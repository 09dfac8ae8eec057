package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courier-dispatch/config"
	"courier-dispatch/internal/adapter/estimator"
	httpHandler "courier-dispatch/internal/adapter/http/handler"
	memStorage "courier-dispatch/internal/adapter/storage/memory"
	pgStorage "courier-dispatch/internal/adapter/storage/postgres"
	redisStorage "courier-dispatch/internal/adapter/storage/redis"
	"courier-dispatch/internal/core/ports"
	"courier-dispatch/internal/service"
	"courier-dispatch/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// backends groups the storage adapters selected by storage.driver.
type backends struct {
	users      ports.UserRepository
	wallets    ports.WalletRepository
	deliveries ports.DeliveryRepository
	quotes     ports.QuoteStore
	rateLimits ports.RateLimitStore
	locker     ports.Locker
	health     []ports.HealthChecker
	closers    []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret must be set (DISPATCH_JWT_SECRET)")
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("quote_provider", cfg.Quote.Provider).
		Msg("Starting Courier Dispatch")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize storage
	var rdb *goredis.Client
	if cfg.UsesRedis() {
		rdb, err = redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
	}
	store, err := openBackends(ctx, cfg, rdb, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer store.close()

	// Event fan-out: in-process bus, optional redis bridge, optional webhook
	bus := service.NewEventBus(cfg.Events.Buffer, logger.Component(log, "events"))
	publishers := service.MultiPublisher{bus}

	if rdb != nil {
		bridge := redisStorage.NewEventBridge(rdb, cfg.Events.Channel, log)
		stopBridge, err := bridge.Listen(ctx, bus)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to subscribe to delivery events")
		}
		defer stopBridge()
		publishers = append(publishers, bridge)
	}

	notifier := service.NewWebhookNotifier(
		cfg.Webhook.URL,
		cfg.Webhook.Secret,
		&http.Client{Timeout: cfg.Webhook.Timeout},
		logger.Component(log, "webhook"),
	)
	if notifier.Enabled() {
		publishers = append(publishers, notifier)
		log.Info().Str("url", cfg.Webhook.URL).Msg("Webhook notifications enabled")
	}

	// Quote provider: local formula, or the remote estimator falling back to it
	local := service.NewLocalEstimator()
	var provider ports.QuoteProvider = local
	var insights ports.InsightProvider
	if cfg.Quote.Provider == config.QuoteProviderRemote {
		client, err := estimator.NewClient(estimator.Options{
			QuoteURL:    cfg.Quote.RemoteURL,
			InsightsURL: cfg.Quote.InsightsURL,
			APIKey:      cfg.Quote.APIKey,
			Timeout:     cfg.Quote.Timeout,
			MaxRetries:  cfg.Quote.MaxRetries,
			Fallback:    local,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize estimator client")
		}
		provider = client
		if client.InsightsEnabled() {
			insights = client
		}
	}

	// Initialize core services
	locker := service.NewBoundedLocker(store.locker, cfg.Lock.Wait)
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	authSvc := service.NewAuthService(store.users, hashSvc, tokenSvc, logger.Component(log, "auth"))
	walletSvc := service.NewWalletService(store.wallets, locker, cfg.Wallet.OpeningBalance, logger.Component(log, "wallet"))
	deliverySvc := service.NewDeliveryService(store.deliveries, locker, publishers, logger.Component(log, "delivery"))
	quoteSvc := service.NewQuoteService(provider, store.quotes, cfg.Quote.TTL, cfg.Fare.Location(), logger.Component(log, "quote"))
	matcher := service.NewDirectoryMatcher(store.users, cfg.Matching.Delay, logger.Component(log, "matcher"))
	bookingSvc := service.NewBookingService(quoteSvc, store.quotes, matcher, walletSvc, deliverySvc, locker, logger.Component(log, "booking"))
	insightSvc := service.NewInsightService(insights, deliverySvc, logger.Component(log, "insight"))

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		WalletSvc:      walletSvc,
		QuoteSvc:       quoteSvc,
		BookingSvc:     bookingSvc,
		DeliverySvc:    deliverySvc,
		InsightSvc:     insightSvc,
		Events:         bus,
		RateLimitStore: store.rateLimits,
		HealthCheckers: store.health,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Give in-flight webhook retries the rest of the shutdown window.
	if err := notifier.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Pending webhook retries abandoned")
	}

	log.Info().Msg("Server exited")
}

// openBackends wires the repositories for the configured driver. Quotes and
// rate limits live in redis whenever a client is available.
func openBackends(ctx context.Context, cfg *config.Config, rdb *goredis.Client, log zerolog.Logger) (*backends, error) {
	b := &backends{}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		if cfg.Database.Migrate {
			if err := pgStorage.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
			log.Info().Msg("PostgreSQL schema migrated")
		}
		b.users = pgStorage.NewUserRepo(pool)
		b.wallets = pgStorage.NewWalletRepo(pool)
		b.deliveries = pgStorage.NewDeliveryRepo(pool, log)
		b.locker = pgStorage.NewAdvisoryLocker(pool)
		b.health = append(b.health, pgStorage.NewHealthCheck(pool))

	case config.DriverRedis:
		b.users = redisStorage.NewUserRepo(rdb, log)
		b.wallets = redisStorage.NewWalletRepo(rdb, log)
		b.deliveries = redisStorage.NewDeliveryRepo(rdb, log)
		b.locker = redisStorage.NewLocker(rdb, cfg.Lock.TTL, log)

	default:
		b.users = memStorage.NewUserRepo()
		b.wallets = memStorage.NewWalletRepo()
		b.deliveries = memStorage.NewDeliveryRepo()
		b.locker = memStorage.NewLocker()
	}

	if rdb != nil {
		b.quotes = redisStorage.NewQuoteStore(rdb)
		b.rateLimits = redisStorage.NewRateLimitStore(rdb)
		b.health = append(b.health, redisStorage.NewHealthCheck(rdb))
		b.closers = append(b.closers, func() { _ = rdb.Close() })
	} else {
		b.quotes = memStorage.NewQuoteStore()
		b.rateLimits = memStorage.NewRateLimitStore()
	}

	return b, nil
}
