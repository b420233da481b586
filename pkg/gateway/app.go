// Package gateway assembles the Payment Orchestrator and its collaborators
// into a runnable application: store backend, merchant directory,
// authenticator, state machine, bank simulator, notifier, expiry reaper, and
// HTTP server, wired from a single config.Config (§2's bootstrap section).
//
// Grounded on the teacher's pkg/cedros.App: the same options-plus-NewApp
// embedding shape, the same resourceManager-driven cleanup ordering, adapted
// from the paywall/Stripe/x402 stack to the gateway's own collaborators.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/hackload-kz/payment-gateway/internal/authenticator"
	"github.com/hackload-kz/payment-gateway/internal/bank"
	"github.com/hackload-kz/payment-gateway/internal/circuitbreaker"
	"github.com/hackload-kz/payment-gateway/internal/config"
	"github.com/hackload-kz/payment-gateway/internal/dbpool"
	"github.com/hackload-kz/payment-gateway/internal/httpserver"
	"github.com/hackload-kz/payment-gateway/internal/idempotency"
	"github.com/hackload-kz/payment-gateway/internal/lifecycle"
	"github.com/hackload-kz/payment-gateway/internal/logger"
	"github.com/hackload-kz/payment-gateway/internal/merchant"
	"github.com/hackload-kz/payment-gateway/internal/metrics"
	"github.com/hackload-kz/payment-gateway/internal/notify"
	"github.com/hackload-kz/payment-gateway/internal/observability"
	"github.com/hackload-kz/payment-gateway/internal/orchestrator"
	"github.com/hackload-kz/payment-gateway/internal/payment"
	"github.com/hackload-kz/payment-gateway/internal/reaper"
	"github.com/hackload-kz/payment-gateway/internal/store"
)

// App wires the gateway's components for reuse or standalone serving.
type App struct {
	Config       *config.Config
	Store        store.Store
	Orchestrator *orchestrator.Orchestrator
	Dispatcher   *notify.Dispatcher
	Reaper       *reaper.Reaper

	router          chi.Router
	resourceManager *lifecycle.Manager
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// Option configures App construction.
type Option func(*options)

type options struct {
	store  store.Store
	router chi.Router
}

// WithStore sets a custom storage backend, bypassing cfg.Storage.Backend.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithRouter allows callers to provide an existing chi.Router to register routes onto.
func WithRouter(router chi.Router) Option {
	return func(o *options) { o.router = router }
}

// NewApp assembles the gateway's services for embedding or standalone use.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("gateway: config required")
	}

	optState := options{}
	for _, opt := range opts {
		opt(&optState)
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     cfg.Logging.Service,
		Version:     cfg.Logging.Version,
		Environment: cfg.Logging.Environment,
	})

	app := &App{
		Config:          cfg,
		resourceManager: lifecycle.NewManager(),
		logger:          appLogger,
	}

	if optState.store != nil {
		app.Store = optState.store
	} else {
		backend, err := newStoreBackend(cfg, app.resourceManager)
		if err != nil {
			return nil, err
		}
		app.Store = backend
	}

	app.metrics = metrics.New(prometheus.DefaultRegisterer)

	hooks := observability.NewRegistry(appLogger)
	hooks.RegisterPaymentHook(observability.NewPrometheusHook(app.metrics))
	hooks.RegisterWebhookHook(observability.NewPrometheusHook(app.metrics))
	hooks.RegisterRefundHook(observability.NewPrometheusHook(app.metrics))

	if err := seedMerchants(context.Background(), app.Store, cfg.Merchants); err != nil {
		return nil, fmt.Errorf("seed merchants: %w", err)
	}

	dir := merchant.NewDirectory(app.Store, time.Minute, merchant.DefaultLockoutPolicy())
	auth := authenticator.New(dir, app.metrics, appLogger)
	machine := payment.NewMachine(app.Store, time.Now)
	breaker := circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker)
	bankSim := bank.New(breaker, app.metrics)

	secretLookup := func(ctx context.Context, teamSlug string) (string, error) {
		m, err := dir.Lookup(ctx, teamSlug)
		if err != nil {
			return "", err
		}
		return m.EffectiveWebhookSecret(), nil
	}
	retryCfg := notify.RetryConfig{
		MaxAttempts: cfg.Notifier.MaxAttempts,
		BaseBackoff: cfg.Notifier.BaseBackoff.Duration,
		MaxBackoff:  cfg.Notifier.MaxBackoff.Duration,
		Multiplier:  2.0,
		Timeout:     cfg.Notifier.Timeout.Duration,
	}
	app.Dispatcher = notify.NewDispatcher(app.Store, secretLookup, retryCfg, breaker, app.metrics, appLogger).WithHooks(hooks)
	app.resourceManager.RegisterFunc("webhook-dispatcher", func() error {
		app.Dispatcher.Stop()
		return nil
	})

	idemStore := idempotency.NewMemoryStore()
	app.resourceManager.RegisterFunc("idempotency-store", func() error {
		idemStore.Stop()
		return nil
	})

	app.Orchestrator = orchestrator.New(app.Store, auth, machine, bankSim, app.Dispatcher, idemStore, app.metrics, appLogger, cfg.Server.BaseURL).WithHooks(hooks)

	app.Reaper = reaper.New(app.Store, machine, reaper.Config{
		Interval:  cfg.Reaper.Interval.Duration,
		BatchSize: cfg.Reaper.BatchSize,
	}, app.metrics, appLogger)
	app.resourceManager.RegisterFunc("reaper", func() error {
		app.Reaper.Stop()
		return nil
	})

	if optState.router != nil {
		app.router = optState.router
	} else {
		app.router = chi.NewRouter()
	}
	httpserver.ConfigureRouter(app.router, cfg, app.Orchestrator, app.metrics, appLogger)

	return app, nil
}

// Start begins the background dispatcher and reaper loops. Call once, after NewApp.
func (a *App) Start(ctx context.Context) {
	a.Dispatcher.Start(ctx)
	a.Reaper.Start(ctx)
}

// Router returns the chi router with the gateway's routes registered.
func (a *App) Router() chi.Router {
	return a.router
}

// Handler exposes the router as an http.Handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Close releases resources owned by the app (dispatcher, reaper, store, etc).
func (a *App) Close() error {
	return a.resourceManager.Close()
}

// NewHandler is a convenience that constructs and starts an App, returning
// its handler and a shutdown func.
func NewHandler(cfg *config.Config, opts ...Option) (http.Handler, func(context.Context) error, error) {
	app, err := NewApp(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	app.Start(context.Background())
	shutdown := func(context.Context) error {
		return app.Close()
	}
	return app.Handler(), shutdown, nil
}

// newStoreBackend selects and opens the configured storage backend (§2:
// memory for dev/test, Postgres or MongoDB for production).
func newStoreBackend(cfg *config.Config, lifec *lifecycle.Manager) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "", "memory":
		s := store.NewMemoryStore()
		lifec.RegisterFunc("store", s.Close)
		return s, nil
	case "postgres":
		pool, err := dbpool.NewSharedPool(cfg.Storage.PostgresURL, cfg.Storage.PostgresPool)
		if err != nil {
			return nil, fmt.Errorf("open postgres pool: %w", err)
		}
		lifec.RegisterFunc("dbpool", func() error { return pool.Close() })
		s, err := store.NewPostgresStoreWithDB(pool.DB())
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return s, nil
	case "mongodb":
		s, err := store.NewMongoDBStore(cfg.Storage.MongoDBURL, cfg.Storage.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("init mongodb store: %w", err)
		}
		lifec.RegisterFunc("store", s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// seedMerchants bootstraps dev/demo merchant records listed in config (§2),
// equivalent to the teacher's YAML-seeded paywall products.
func seedMerchants(ctx context.Context, s store.Store, seeds []config.SeedMerchant) error {
	for _, seed := range seeds {
		currencies := make(map[string]struct{}, len(seed.SupportedCurrencies))
		for _, c := range seed.SupportedCurrencies {
			currencies[c] = struct{}{}
		}
		m := &merchant.Merchant{
			TeamSlug:               seed.TeamSlug,
			Password:               seed.Password,
			IsActive:               seed.IsActive,
			SupportedCurrencies:    currencies,
			MinPerPayment:          seed.MinPerPayment,
			MaxPerPayment:          seed.MaxPerPayment,
			DailyTotal:             seed.DailyTotal,
			DailyCount:             seed.DailyCount,
			MinPaymentExpiry:       seed.MinPaymentExpiry,
			MaxPaymentExpiry:       seed.MaxPaymentExpiry,
			DefaultSuccessURL:      seed.DefaultSuccessURL,
			DefaultFailURL:         seed.DefaultFailURL,
			DefaultNotificationURL: seed.DefaultNotificationURL,
		}
		if err := s.Save(ctx, m); err != nil {
			return fmt.Errorf("seed merchant %q: %w", seed.TeamSlug, err)
		}
	}
	return nil
}

// Config is an exported alias of the internal configuration struct for embedding use.
type Config = config.Config

// LoadConfig wraps the internal loader for consumers embedding the gateway.
func LoadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}
