package app

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/glowdesk/glowdesk/internal/analytics"
	"github.com/glowdesk/glowdesk/internal/auth"
	"github.com/glowdesk/glowdesk/internal/customers"
	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/freebies"
	"github.com/glowdesk/glowdesk/internal/observability"
	"github.com/glowdesk/glowdesk/internal/products"
	"github.com/glowdesk/glowdesk/internal/purchases"
	"github.com/glowdesk/glowdesk/internal/shared"
)

// ServiceDeps carries the infrastructure the domain services are built on.
type ServiceDeps struct {
	Config  *Config
	Store   docstore.Store
	Redis   *redis.Client
	Mail    auth.MailQueue
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Services holds every domain service of one process.
type Services struct {
	Customers *customers.Service
	Products  *products.Service
	Freebies  *freebies.Service
	Purchases *purchases.Service
	Analytics *analytics.Service
	Auth      *auth.Service
	Cache     *analytics.Cache
}

// NewServices wires the repositories and services. Every repository write
// invalidates the analytics cache.
func NewServices(deps ServiceDeps) *Services {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	customerRepo := customers.NewRepository(deps.Store)
	productRepo := products.NewRepository(deps.Store)
	freebieRepo := freebies.NewRepository(deps.Store)
	ledgerRepo := freebies.NewLedgerRepository(deps.Store)
	purchaseRepo := purchases.NewRepository(deps.Store)
	userRepo := auth.NewRepository(deps.Store)

	customerSvc := customers.NewService(customerRepo)
	productSvc := products.NewService(productRepo, products.ServiceConfig{LowStockThreshold: cfg.LowStockThreshold})
	freebieSvc := freebies.NewService(freebieRepo, ledgerRepo, logger.With("component", "freebies"))

	var cache *analytics.Cache
	var idempotency *shared.IdempotencyStore
	var tokens *auth.ResetTokens
	if deps.Redis != nil {
		cache = analytics.NewCache(deps.Redis, cfg.StorePrefix, cfg.AnalyticsCacheTTL)
		if deps.Metrics != nil {
			cache = cache.WithMetrics(deps.Metrics)
		}
		idempotency = shared.NewIdempotencyStore(deps.Redis, cfg.StorePrefix, cfg.IdempotencyTTL)
		tokens = auth.NewResetTokens(deps.Redis, cfg.StorePrefix, cfg.PasswordResetTTL)
	}

	var recorder purchases.Recorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}
	purchaseSvc := purchases.NewService(purchaseRepo, purchases.Dependencies{
		Customers:   customerSvc,
		Inventory:   productSvc,
		Freebies:    freebieSvc,
		Idempotency: idempotency,
		Metrics:     recorder,
		Logger:      logger.With("component", "purchases"),
	})

	analyticsSvc := analytics.NewService(analytics.Sources{
		Customers: customerSvc,
		Products:  productSvc,
		Freebies:  freebieSvc,
		Purchases: purchaseSvc,
	}, cache, analytics.Config{
		DashboardLowStockThreshold: cfg.LowStockThreshold,
		InventoryLowStockThreshold: cfg.AnalyticsLowStockThreshold,
		FastMovingLimit:            cfg.FastMovingLimit,
	})

	customerRepo.OnChange(analyticsSvc.Invalidate)
	productRepo.OnChange(analyticsSvc.Invalidate)
	freebieRepo.OnChange(analyticsSvc.Invalidate)
	ledgerRepo.OnChange(analyticsSvc.Invalidate)
	purchaseRepo.OnChange(analyticsSvc.Invalidate)

	authSvc := auth.NewService(userRepo, auth.Options{
		Tokens:   tokens,
		Mail:     deps.Mail,
		ResetURL: cfg.PasswordResetURL,
		Logger:   logger.With("component", "auth"),
	})

	return &Services{
		Customers: customerSvc,
		Products:  productSvc,
		Freebies:  freebieSvc,
		Purchases: purchaseSvc,
		Analytics: analyticsSvc,
		Auth:      authSvc,
		Cache:     cache,
	}
}

// ListenForInvalidation follows cache bumps published by other processes
// until ctx ends.
func (s *Services) ListenForInvalidation(ctx context.Context) error {
	return s.Cache.ListenForInvalidation(ctx)
}
