// Package main is the entry point for the Lattice API server.
//
// It loads configuration, connects the database pool, constructs the Stripe
// and compute-engine clients, wires the domain services into the HTTP
// chassis, and serves until interrupted. Graceful shutdown is handled via
// OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lattice/internal/api/handlers"
	"lattice/internal/auth"
	"lattice/internal/billing"
	"lattice/internal/config"
	"lattice/internal/core"
	"lattice/internal/db"
	"lattice/internal/external"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("lattice API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
		"billing_enabled", cfg.Billing.Enabled(),
	)

	ctx := context.Background()

	pool, err := newDBPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}

	// Repositories.
	accountRepo := db.NewAccountRepository(pool, logger)
	userRepo := db.NewUserRepository(pool)
	projectRepo := db.NewProjectRepository(pool)
	sessionRepo := db.NewSessionRepository(pool)

	// Auth services.
	sessionSvc := auth.NewSessionService(
		sessionRepo,
		userRepo,
		nil,
		auth.SessionConfig{
			SessionDuration: cfg.Auth.SessionTTL,
			SessionIDPrefix: "sess_",
		},
		nil,
		logger,
	)
	authSvc := auth.NewAuthService(auth.AuthServiceConfig{
		Users:     userRepo,
		Sessions:  sessionSvc,
		TxManager: db.NewAuthTxManager(pool, logger),
		Logger:    logger,
	})

	// External clients. The Stripe gateway stays nil when billing is not
	// configured; the checkout service then fails fast with a config error.
	var gateway billing.StripeGateway
	if cfg.Billing.Enabled() {
		gateway = external.NewStripeClient(
			&http.Client{Timeout: 20 * time.Second},
			external.StripeClientConfig{
				SecretKey: cfg.Billing.StripeSecretKey.Unmask(),
				Logger:    logger,
			},
		)
	}
	computeClient := external.NewComputeClient(
		&http.Client{Timeout: cfg.Compute.Timeout},
		external.ComputeClientConfig{
			BaseURL: cfg.Compute.BaseURL,
			Logger:  logger,
		},
	)

	// Billing core.
	checkoutSvc := billing.NewCheckoutService(gateway, accountRepo, logger)
	reconciler := billing.NewReconciler(accountRepo, logger)

	// Server chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Sessions = sessionSvc
	srv.Health = core.NewHealthChecker(
		&dbProbe{pool: pool},
		&computeProbe{client: computeClient},
	)
	srv.Health.AddCloser(func(context.Context) error {
		pool.Close()
		return nil
	})

	// Handlers.
	authHandler := handlers.NewAuthHandler(authSvc, userRepo, cfg, srv.Validator, logger)
	webhookHandler := handlers.NewStripeWebhookHandler(
		&external.StripeVerifier{},
		reconciler,
		cfg.Billing.StripeWebhookSecret,
		logger,
	)
	billingHandler := handlers.NewBillingHandler(checkoutSvc, accountRepo, cfg, srv.Validator, logger)
	projectsHandler := handlers.NewProjectsHandler(projectRepo, srv.Validator, nil, logger)
	consoleHandler := handlers.NewConsoleHandler(computeClient, logger)

	srv.V1RouteRegistrars = []func(chi.Router){
		// Public: auth endpoints and the Stripe webhook.
		authHandler.RegisterRoutes,
		webhookHandler.RegisterRoutes,
		// Everything else requires a session.
		func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(core.AuthMiddleware(sessionSvc, cfg.Auth.CookieName))
				authHandler.RegisterProtectedRoutes(r)
				billingHandler.RegisterRoutes(r)
				projectsHandler.RegisterRoutes(r)
				consoleHandler.RegisterRoutes(r)
			})
		},
	}

	srv.MountRoutes()

	// Background sweep for sessions whose cookie is never presented again;
	// validation handles the ones that are.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go auth.NewSessionSweeper(sessionRepo, auth.DefaultSweepInterval, logger).Run(sweepCtx)

	return runHTTPServer(srv, cfg, logger)
}

// newDBPool builds the pgx pool from configuration.
func newDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// dbProbe reports database reachability for the health endpoint.
type dbProbe struct {
	pool *pgxpool.Pool
}

func (p *dbProbe) Name() string                    { return "database" }
func (p *dbProbe) Check(ctx context.Context) error { return p.pool.Ping(ctx) }

// computeProbe reports compute engine reachability for the health endpoint.
type computeProbe struct {
	client *external.ComputeClient
}

func (p *computeProbe) Name() string                    { return "compute_engine" }
func (p *computeProbe) Check(ctx context.Context) error { return p.client.Ping(ctx) }

// runHTTPServer starts the server with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
