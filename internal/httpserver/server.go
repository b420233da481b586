// Package httpserver exposes the Payment Orchestrator (C7) over HTTP: one
// route per public operation, plus health and metrics endpoints. Grounded on
// the teacher's internal/httpserver package shape (a handlers struct holding
// injected dependencies, ConfigureRouter attaching routes to an existing
// chi.Router, New wrapping that router in an *http.Server).
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackload-kz/payment-gateway/internal/config"
	"github.com/hackload-kz/payment-gateway/internal/logger"
	"github.com/hackload-kz/payment-gateway/internal/metrics"
	"github.com/hackload-kz/payment-gateway/internal/orchestrator"
	"github.com/hackload-kz/payment-gateway/internal/ratelimit"
)

var serverStartTime = time.Now()

// Server wires handlers, middleware, and dependencies behind a stdlib
// *http.Server.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg          *config.Config
	orchestrator *orchestrator.Orchestrator
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// New builds the HTTP server with a configured router.
func New(cfg *config.Config, orch *orchestrator.Orchestrator, metricsCollector *metrics.Metrics, appLogger zerolog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		handlers: handlers{
			cfg:          cfg,
			orchestrator: orch,
			metrics:      metricsCollector,
			logger:       appLogger,
		},
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	ConfigureRouter(router, cfg, orch, metricsCollector, appLogger)

	return s
}

// ConfigureRouter attaches the gateway's routes to an existing router.
func ConfigureRouter(router chi.Router, cfg *config.Config, orch *orchestrator.Orchestrator, metricsCollector *metrics.Metrics, appLogger zerolog.Logger) {
	if router == nil {
		return
	}

	handler := handlers{
		cfg:          cfg,
		orchestrator: orch,
		metrics:      metricsCollector,
		logger:       appLogger,
	}

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeadersMiddleware)
	router.Use(logger.Middleware(appLogger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	rateLimitCfg := ratelimit.Config{
		GlobalEnabled:      cfg.RateLimit.GlobalEnabled,
		GlobalLimit:        cfg.RateLimit.GlobalLimit,
		GlobalWindow:       cfg.RateLimit.GlobalWindow.Duration,
		PerMerchantEnabled: cfg.RateLimit.PerMerchantEnabled,
		PerMerchantLimit:   cfg.RateLimit.PerMerchantLimit,
		PerMerchantWindow:  cfg.RateLimit.PerMerchantWindow.Duration,
		PerIPEnabled:       cfg.RateLimit.PerIPEnabled,
		PerIPLimit:         cfg.RateLimit.PerIPLimit,
		PerIPWindow:        cfg.RateLimit.PerIPWindow.Duration,
		Metrics:            metricsCollector,
	}
	router.Use(ratelimit.GlobalLimiter(rateLimitCfg))
	router.Use(ratelimit.MerchantLimiter(rateLimitCfg))
	router.Use(ratelimit.IPLimiter(rateLimitCfg))

	prefix := cfg.Server.RoutePrefix

	// Lightweight endpoints: short timeout, no merchant-facing side effects.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get(prefix+"/health", handler.health)
		r.With(adminAuth(cfg.Server.AdminToken)).Handle(prefix+"/metrics", promhttp.Handler())
	})

	// Payment operations: longer timeout to cover a bank simulator round trip
	// plus webhook enqueue (§4.5's pipeline).
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post(prefix+"/paymentinit/init", handler.init)
		r.Get(prefix+"/paymentform/{paymentId}", handler.formShow)
		r.Post(prefix+"/paymentform/process", handler.formSubmit)
		r.Post(prefix+"/paymentconfirm/confirm", handler.confirm)
		r.Post(prefix+"/paymentcancel/cancel", handler.cancel)
		r.Post(prefix+"/paymentcheck/check", handler.check)
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
