package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/openskills/skillhub/pkg/api"
	"github.com/openskills/skillhub/pkg/audit"
	"github.com/openskills/skillhub/pkg/auth"
	"github.com/openskills/skillhub/pkg/authz"
	"github.com/openskills/skillhub/pkg/config"
	"github.com/openskills/skillhub/pkg/observability"
	"github.com/openskills/skillhub/pkg/search"
	"github.com/openskills/skillhub/pkg/storage/postgres"
	"github.com/openskills/skillhub/pkg/tasks"
)

// Populated via -ldflags at build time.
var (
	version   = "dev"
	commit    = ""
	buildDate = ""
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting skillhub %s (auth mode: %s)", version, cfg.Auth.Mode)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("skillhub exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: version,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if tracerProvider != nil {
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.WithError(err).Warn("failed to shut down tracer provider")
			}
		}()
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	store, err := postgres.New(cfg.Storage, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("storage initialized")

	auditLogger, err := audit.NewLogger(store.DB())
	if err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}

	taskManager, err := tasks.NewManager(store.DB(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize task manager: %w", err)
	}
	taskManager.Start()
	defer taskManager.Stop()

	searchService := search.NewService(store.DB())

	// The authorization table must be provably identical across auth modes
	// before anything listens.
	roleConfig := authz.RoleConfigFrom(cfg.Auth)
	if err := authz.VerifyModeConsistency(roleConfig); err != nil {
		return fmt.Errorf("authorization table mode consistency check failed: %w", err)
	}
	table := authz.BuildTable(cfg.Auth.Mode, roleConfig)

	deps := api.Deps{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Store:   store,
		Search:  searchService,
		Audit:   auditLogger,
		Tasks:   taskManager,
		Version: api.VersionInfo{Version: version, Commit: commit, BuiltAt: buildDate},
	}

	var verifier auth.ClaimsVerifier
	if cfg.Auth.OAuth2Enabled() {
		oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCClientID)
		if err != nil {
			return fmt.Errorf("failed to initialize OIDC verifier: %w", err)
		}
		verifier = oidcVerifier
		logger.Info("OAuth2 verification enabled against %s", cfg.Auth.OIDCIssuer)
	}
	deps.Decoder = auth.NewDecoder(cfg.Auth.RoleAdmin, cfg.Auth.RolesClaim, verifier)

	if cfg.Auth.SingleAuthEnabled() {
		deps.Validator = auth.NewCredentialValidator(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, cfg.Auth.RoleAdmin, logger)
		deps.Issuer = auth.NewIssuer(cfg.Auth.RoleAdmin)
		logger.Info("single-auth login enabled")
	}

	if cfg.Auth.ProvidersFile != "" {
		entries, err := auth.LoadProviderEntries(cfg.Auth.ProvidersFile)
		if err != nil {
			logger.WithError(err).Warn("failed to load provider registry, continuing without external providers")
		} else {
			deps.Providers = auth.NewProviderRegistry(cfg.Auth.BaseURL, entries)
			logger.Info("loaded %d provider entries", len(entries))
		}
	}

	apiServer := api.NewServer(deps, table)
	defer apiServer.Close()

	mainServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(store.DB(), store.Redis(), version)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc(authz.HealthPath, health.Handler)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening on %s", mainServer.Addr)
		if err := mainServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("main server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("health/metrics listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := mainServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("main server shutdown failed")
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("health server shutdown failed")
		}
		return nil
	})

	return g.Wait()
}
