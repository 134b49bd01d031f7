package main

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/clearlink/backend/internal/adapters/cache"
	"github.com/zatekoja/clearlink/backend/internal/adapters/database"
	"github.com/zatekoja/clearlink/backend/internal/adapters/events"
	"github.com/zatekoja/clearlink/backend/internal/adapters/memory"
	"github.com/zatekoja/clearlink/backend/internal/domain/providers"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/observability"
	"github.com/zatekoja/clearlink/backend/pkg/config"
)

const localZoneCacheSize = 128

// storage is every repository the API needs plus the event bus they publish on
type storage struct {
	tasks        repositories.TransportTaskRepository
	appointments repositories.AppointmentRepository
	patients     repositories.PatientRepository
	resources    repositories.ResourceRepository
	users        repositories.UserRepository
	zones        repositories.ZoneDistanceRepository
	audit        repositories.AuditRepository
	events       providers.EventBus

	// demo is set when the store starts empty and should be seeded
	demo    bool
	closers []func() error
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			observability.GetLogger().Warn().Err(err).Msg("error during storage shutdown")
		}
	}
}

func openStorage(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) (*storage, error) {
	logger := observability.GetLogger()

	if cfg.App.StorageDriver == config.StorageDriverMemory {
		store := memory.NewStore()
		bus := events.NewLocalEventBus()
		zoneCache := cache.NewLRUAdapter(localZoneCacheSize, cfg.Dispatch.ZoneCacheTTL)
		logger.Warn().Msg("using in-memory storage; state is lost on restart")
		return &storage{
			tasks:        store.Tasks(),
			appointments: store.Appointments(),
			patients:     store.Patients(),
			resources:    store.Resources(),
			users:        store.Users(),
			zones:        database.NewCachedZoneDistanceAdapter(store.ZoneDistances(), zoneCache, cfg.Dispatch.ZoneCacheTTL, metrics),
			audit:        store.Audit(),
			events:       bus,
			demo:         true,
			closers:      []func() error{bus.Close},
		}, nil
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}
	s := &storage{closers: []func() error{pgClient.Close}}

	schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.EnsureSchema(schemaCtx, pgClient); err != nil {
		s.Close()
		return nil, err
	}
	logger.Info().Msg("PostgreSQL client initialized successfully")

	var zoneCache providers.CacheProvider
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			// Continue without Redis: zone distances are cached locally and events stay in-process
			logger.Warn().Err(err).Msg("failed to initialize Redis client")
		} else {
			s.closers = append(s.closers, redisClient.Close)
			zoneCache = cache.NewRedisAdapter(redisClient, "clearlink:")
			s.events = events.NewRedisEventBus(redisClient)
			logger.Info().Msg("Redis client initialized successfully")
		}
	}
	if zoneCache == nil {
		zoneCache = cache.NewLRUAdapter(localZoneCacheSize, cfg.Dispatch.ZoneCacheTTL)
	}
	if s.events == nil {
		s.events = events.NewLocalEventBus()
		logger.Warn().Msg("event bus is process-local; the standalone SSE server will not see events")
	}
	s.closers = append(s.closers, s.events.Close)

	s.tasks = database.NewTransportTaskAdapter(pgClient)
	s.appointments = database.NewAppointmentAdapter(pgClient)
	s.patients = database.NewPatientAdapter(pgClient)
	s.resources = database.NewResourceAdapter(pgClient)
	s.users = database.NewUserAdapter(pgClient)
	s.zones = database.NewCachedZoneDistanceAdapter(database.NewZoneDistanceAdapter(pgClient), zoneCache, cfg.Dispatch.ZoneCacheTTL, metrics)
	s.audit = database.NewAuditAdapter(pgClient)

	return s, nil
}
