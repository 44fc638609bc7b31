package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/securevault/securevault/internal/cache"
	"github.com/securevault/securevault/internal/config"
	"github.com/securevault/securevault/internal/identity"
	"github.com/securevault/securevault/internal/ledger"
	"github.com/securevault/securevault/internal/middleware"
	"github.com/securevault/securevault/internal/notification"
	"github.com/securevault/securevault/internal/payments"
	"github.com/securevault/securevault/internal/rates"
	"github.com/securevault/securevault/internal/wallet"
)

// Deps aggregates the injected handles required to wire routes.
type Deps struct {
	Cfg      config.Config
	Store    ledger.Store
	Users    identity.Repository
	Cache    cache.Cache
	Notifier notification.Notifier
	Rates    rates.Provider
	Logger   *slog.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Store == nil:
		return errors.New("ledger store is required")
	case d.Users == nil:
		return errors.New("user repository is required")
	case d.Cache == nil:
		return errors.New("cache is required")
	case d.Rates == nil:
		return errors.New("rate provider is required")
	case d.Logger == nil:
		return errors.New("logger is required")
	case d.Cfg.HMACSecret == "":
		return errors.New("hmac secret is required")
	}
	return nil
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if err := d.validate(); err != nil {
		return err
	}
	// Enforce durable backends outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if _, inMemory := d.Store.(*ledger.MemoryStore); inMemory {
			return fmt.Errorf("postgres is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if _, inMemory := d.Cache.(*cache.Memory); inMemory {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Services and handlers
	walletSvc := wallet.NewService(d.Store)
	paymentSvc := payments.NewService(d.Store, d.Notifier, d.Logger, d.Cfg.TransferTimeout)
	identitySvc := identity.NewService(d.Users, d.Logger)
	rateSvc := rates.NewService(d.Rates, d.Cache, d.Cfg.RateCacheTTL, d.Logger)

	// Mutations must be signed; the gate runs before any cache lookup.
	api := app.Group("/api/v1",
		middleware.Signature([]byte(d.Cfg.HMACSecret), d.Logger),
		middleware.Idempotency(d.Cache, middleware.IdempotencyConfig{
			TTL:   d.Cfg.IdempotencyTTL,
			Lease: d.Cfg.IdempotencyLease,
		}, d.Logger),
	)

	registerLimit := middleware.RateLimit(d.Cache, "register", d.Cfg.RegisterRateLimit, time.Minute, d.Logger)
	RegisterIdentityRoutes(api, identity.NewHandler(identitySvc), registerLimit)
	RegisterWalletRoutes(api, wallet.NewHandler(walletSvc))
	RegisterPaymentRoutes(api, payments.NewHandler(paymentSvc))
	RegisterRateRoutes(api, rates.NewHandler(rateSvc, d.Logger))

	return nil
}
