package http

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"stealthbuddy/internal/account"
	"stealthbuddy/internal/auth"
	"stealthbuddy/internal/billing"
	"stealthbuddy/internal/config"
	"stealthbuddy/internal/metrics"
	"stealthbuddy/internal/platform/telemetry"
)

const serviceName = "stealthbuddy-web"

// Dependencies are the services the router hands to its handlers.
type Dependencies struct {
	Auth     *auth.Service
	Accounts *account.Service
	Notices  *account.Notices
	Checkout *billing.Orchestrator
	Catalog  *billing.Catalog

	// Metrics and Gatherer are optional. /metrics is served when both are set
	// and metrics are enabled.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
}

// NewRouter wires application routes and middleware using chi. Background
// work owned by the router stops when ctx is cancelled.
func NewRouter(ctx context.Context, cfg config.Config, deps Dependencies, logger *slog.Logger) (http.Handler, error) {
	pages, err := newRenderer(logger)
	if err != nil {
		return nil, err
	}

	var (
		requests requestRecorder
		logins   loginRecorder
	)
	if deps.Metrics != nil {
		requests = deps.Metrics
		logins = deps.Metrics
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(telemetry.Middleware(serviceName))
	r.Use(newSlogMiddleware(logger, requests))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))
	r.Use(newSessionMiddleware(deps.Auth, logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})

	if cfg.MetricsEnabled && deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	authHandler := NewAuthHandler(deps.Auth, deps.Accounts, logins, pages, cfg.Environment, logger)
	pagesHandler := NewPagesHandler(deps.Accounts, deps.Notices, deps.Catalog, cfg.Downloads, pages, cfg.Environment, logger)
	checkoutHandler := NewCheckoutHandler(deps.Checkout, deps.Accounts, deps.Notices, deps.Catalog, cfg.Checkout.ScriptURL, pages, cfg.Environment, logger)
	sessionHandler := NewSessionHandler(deps.Accounts, logger)

	limiter := newRateLimiter(cfg.Checkout.RatePerMinute, 5*time.Minute)
	go func() {
		<-ctx.Done()
		limiter.Stop()
	}()

	r.Get("/", pagesHandler.Home)
	r.Get("/account", pagesHandler.Account)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", authHandler.Login)
		r.Get("/callback", authHandler.Callback)
		r.Post("/callback", authHandler.CallbackForm)
		r.Post("/logout", authHandler.Logout)
	})

	r.Route("/checkout", func(r chi.Router) {
		r.With(limiter.Middleware("checkout", logger)).Post("/", checkoutHandler.Start)
		r.Post("/{id}/events", checkoutHandler.Events)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Get("/session", sessionHandler.Status)
		r.With(requireSessionJSON).Get("/credits", sessionHandler.Credits)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})

	return r, nil
}
