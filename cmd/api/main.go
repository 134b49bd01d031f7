package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zatekoja/clearlink/backend/internal/api/handlers"
	"github.com/zatekoja/clearlink/backend/internal/api/middleware"
	"github.com/zatekoja/clearlink/backend/internal/api/routes"
	"github.com/zatekoja/clearlink/backend/internal/application/seed"
	"github.com/zatekoja/clearlink/backend/internal/application/services"
	"github.com/zatekoja/clearlink/backend/internal/domain/providers"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/observability"
	"github.com/zatekoja/clearlink/backend/pkg/config"
)

const identityCacheTTL = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Env, cfg.App.LogLevel)
	logger := observability.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	store, err := openStorage(ctx, cfg, metrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	clock := providers.SystemClock{}

	matcher := services.NewResourceMatcher(store.resources, store.zones, cfg.Dispatch.UnreachableKm)
	audit := services.NewAuditRecorder(store.audit, clock, cfg.Dispatch.AuditTimeout, cfg.Dispatch.AuditPageSize, metrics)
	dispatch := services.NewDispatchService(store.tasks, store.resources, matcher, audit, store.events, clock, metrics)
	dashboard := services.NewDashboardService(store.tasks, store.appointments, store.patients, store.resources, matcher, clock)

	if store.demo {
		if _, err := seed.NewSeeder(store.users, store.resources, store.zones, dispatch).Run(ctx, clock.Now()); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed demo data")
		}
	}

	identity := middleware.NewIdentityResolver(store.users, store.resources, cfg.Dispatch.IdentityCacheSize, identityCacheTTL)

	router := routes.NewRouter(
		handlers.NewTransportRequestHandler(dispatch),
		handlers.NewDispatchHandler(dispatch),
		handlers.NewDashboardHandler(dashboard, matcher),
		handlers.NewAuditHandler(audit),
		handlers.NewSSEHandler(store.events, handlers.DefaultHeartbeat),
		identity,
		middleware.LoadersMiddleware(store.appointments, store.patients, store.resources),
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Str("storage", cfg.App.StorageDriver).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	logger.Info().Msg("server stopped")
}
