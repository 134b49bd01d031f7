package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zatekoja/clearlink/backend/internal/adapters/database"
	"github.com/zatekoja/clearlink/backend/internal/adapters/events"
	"github.com/zatekoja/clearlink/backend/internal/api/handlers"
	"github.com/zatekoja/clearlink/backend/internal/api/middleware"
	"github.com/zatekoja/clearlink/backend/internal/api/routes"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/observability"
	"github.com/zatekoja/clearlink/backend/pkg/config"
)

// The standalone stream server fans Redis task events out to dashboards so long-lived
// connections do not hold API workers.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-sse", cfg.App.Env, cfg.App.LogLevel)
	logger := observability.GetLogger()

	if cfg.App.StorageDriver == config.StorageDriverMemory {
		logger.Fatal().Msg("the SSE server needs shared storage; streams are served by the API in memory mode")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize Redis client")
	}
	defer redisClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)
	sseHandler := handlers.NewSSEHandler(eventBus, handlers.DefaultHeartbeat)
	identity := middleware.NewIdentityResolver(
		database.NewUserAdapter(pgClient),
		database.NewResourceAdapter(pgClient),
		cfg.Dispatch.IdentityCacheSize,
		5*time.Minute,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	routes.RegisterStreams(mux, sseHandler, identity)
	mux.HandleFunc("GET /api/stream/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"connected_clients": %d}`, sseHandler.GetClientCount())
	})

	var handler http.Handler = mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.CORSMiddleware(cfg.Server.AllowedOrigins)(handler)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.SSEPort)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Msg("SSE server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("SSE server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("SSE server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}
	if err := eventBus.Close(); err != nil {
		logger.Error().Err(err).Msg("error closing event bus")
	}

	logger.Info().Msg("SSE server stopped")
}
