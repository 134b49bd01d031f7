package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/zatekoja/clearlink/backend/internal/adapters/database"
	"github.com/zatekoja/clearlink/backend/internal/application/seed"
	"github.com/zatekoja/clearlink/backend/internal/application/services"
	"github.com/zatekoja/clearlink/backend/internal/domain/providers"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/observability"
	"github.com/zatekoja/clearlink/backend/pkg/config"
)

// seed applies the schema and loads the demo dataset into PostgreSQL
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-seed", cfg.App.Env, cfg.App.LogLevel)
	logger := observability.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	if err := database.EnsureSchema(ctx, pgClient); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	clock := providers.SystemClock{}
	tasks := database.NewTransportTaskAdapter(pgClient)
	resources := database.NewResourceAdapter(pgClient)
	zones := database.NewZoneDistanceAdapter(pgClient)

	matcher := services.NewResourceMatcher(resources, zones, cfg.Dispatch.UnreachableKm)
	audit := services.NewAuditRecorder(database.NewAuditAdapter(pgClient), clock, cfg.Dispatch.AuditTimeout, cfg.Dispatch.AuditPageSize, nil)
	dispatch := services.NewDispatchService(tasks, resources, matcher, audit, nil, clock, nil)

	summary, err := seed.NewSeeder(database.NewUserAdapter(pgClient), resources, zones, dispatch).Run(ctx, clock.Now())
	if err != nil {
		logger.Fatal().Err(err).Msg("seed failed")
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}
