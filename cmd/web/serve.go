package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"stealthbuddy/internal/account"
	"stealthbuddy/internal/auth"
	"stealthbuddy/internal/billing"
	"stealthbuddy/internal/config"
	"stealthbuddy/internal/events"
	transporthttp "stealthbuddy/internal/http"
	"stealthbuddy/internal/metrics"
	"stealthbuddy/internal/platform/database"
	"stealthbuddy/internal/platform/logging"
	"stealthbuddy/internal/platform/migrate"
	"stealthbuddy/internal/platform/telemetry"
)

const sessionSweepInterval = 15 * time.Minute

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	shutdownTracing, err := telemetry.Init(ctx, "stealthbuddy-web", cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	repo, cleanup, err := buildSessionRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize session store", "error", err)
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	outbound := telemetry.NewHTTPClient(&http.Client{Timeout: cfg.API.Timeout})

	provider, err := auth.NewCognitoAuthenticator(ctx, auth.CognitoOptions{
		Domain:            cfg.Identity.Domain,
		ClientID:          cfg.Identity.ClientID,
		ClientSecret:      cfg.Identity.ClientSecret,
		RedirectURI:       cfg.Identity.RedirectURI,
		IssuerURL:         cfg.Identity.IssuerURL,
		ResponseType:      cfg.Identity.ResponseType,
		Scopes:            cfg.Identity.Scopes,
		LogoutRedirectURI: cfg.Identity.LogoutRedirectURI,
		HTTPClient:        outbound,
	})
	if err != nil {
		logger.Error("failed to initialize identity provider", "error", err)
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	publisher := buildPublisher(cfg, logger)
	defer publisher.Close()

	catalog, err := billing.DefaultCatalog()
	if err != nil {
		return err
	}

	backend := billing.NewClient(cfg.API.BaseURL, billing.WithHTTPClient(outbound))
	orchestrator := billing.NewOrchestrator(backend,
		billing.WithThemeColor(cfg.Checkout.ThemeColor),
		billing.WithAttemptTTL(cfg.Checkout.AttemptTTL),
		billing.WithRecorder(collector),
		billing.WithPublisher(publisher),
		billing.WithOrchestratorLogger(logger),
	)

	accounts := account.NewService(orchestrator, logger)
	notices := account.NewNotices()

	authOpts := []auth.Option{
		auth.WithDefaultTokenTTL(cfg.Identity.DefaultTokenTTL),
		auth.WithLogger(logger),
		auth.WithSessionEndHook(accounts.Evict),
		auth.WithSessionEndHook(notices.Evict),
	}
	if cfg.Identity.LogoutMode == config.LogoutModeLocal {
		authOpts = append(authOpts, auth.WithLocalLogout())
	}
	authService := auth.NewService(repo, provider, authOpts...)

	router, err := transporthttp.NewRouter(ctx, cfg, transporthttp.Dependencies{
		Auth:     authService,
		Accounts: accounts,
		Notices:  notices,
		Checkout: orchestrator,
		Catalog:  catalog,
		Metrics:  collector,
		Gatherer: registry,
	}, logger)
	if err != nil {
		return err
	}

	go sweepExpiredSessions(ctx, authService, logger, sessionSweepInterval)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("StealthBuddy web listening", "addr", srv.Addr, "store", cfg.DataStore, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("http server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	return nil
}

func buildSessionRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (auth.Repository, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory session store")
		return auth.NewInMemoryRepository(), nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL, database.PoolOptions{})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return nil, nil, err
	}

	logger.Info("connected to postgres")
	return auth.NewPostgresRepository(db), cleanup, nil
}

func buildPublisher(cfg config.Config, logger *slog.Logger) events.Publisher {
	if cfg.NATSURL == "" {
		return events.Nop{}
	}
	bus, err := events.Connect(cfg.NATSURL, logger)
	if err != nil {
		// Checkout works without the event stream.
		logger.Warn("nats unavailable, checkout outcomes will not be published", "error", err)
		return events.Nop{}
	}
	logger.Info("publishing checkout outcomes", "url", cfg.NATSURL)
	return bus
}

func sweepExpiredSessions(ctx context.Context, authService *auth.Service, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := authService.CleanupExpiredSessions(ctx)
			if err != nil {
				logger.Warn("session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("removed expired sessions", "count", removed)
			}
		}
	}
}
