package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/providers"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/observability"
)

// CachedZoneDistanceAdapter wraps a ZoneDistanceRepository with a read-through cache.
// Missing edges are cached too, so an unreachable pair does not hit the database on every ranking.
type CachedZoneDistanceAdapter struct {
	adapter repositories.ZoneDistanceRepository
	cache   providers.CacheProvider
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedZoneDistanceAdapter creates a new cached zone distance adapter. metrics may be nil.
func NewCachedZoneDistanceAdapter(adapter repositories.ZoneDistanceRepository, cache providers.CacheProvider, ttl time.Duration, metrics *observability.Metrics) repositories.ZoneDistanceRepository {
	return &CachedZoneDistanceAdapter{
		adapter: adapter,
		cache:   cache,
		ttl:     ttl,
		metrics: metrics,
	}
}

type cachedDistance struct {
	Km    float64 `json:"km"`
	Found bool    `json:"found"`
}

func zoneDistanceCacheKey(from, to entities.Zone) string {
	return fmt.Sprintf("zone_distance:%s:%s", from, to)
}

// Get returns the directed distance between two zones, reading through the cache
func (a *CachedZoneDistanceAdapter) Get(ctx context.Context, from, to entities.Zone) (float64, bool, error) {
	cacheKey := zoneDistanceCacheKey(from, to)
	logger := observability.LoggerFromContext(ctx)

	cached, err := a.cache.Get(ctx, cacheKey)
	if err == nil {
		var entry cachedDistance
		if err := json.Unmarshal(cached, &entry); err == nil {
			a.recordHit(ctx, cacheKey)
			return entry.Km, entry.Found, nil
		}
		logger.Warn().Err(err).Str("key", cacheKey).Msg("failed to unmarshal cached zone distance")
	} else if !errors.Is(err, providers.ErrCacheMiss) {
		logger.Warn().Err(err).Str("key", cacheKey).Msg("zone distance cache unavailable")
	}
	a.recordMiss(ctx, cacheKey)

	km, found, err := a.adapter.Get(ctx, from, to)
	if err != nil {
		return 0, false, err
	}

	if data, err := json.Marshal(cachedDistance{Km: km, Found: found}); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, a.ttl); err != nil {
			logger.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache zone distance")
		}
	}
	return km, found, nil
}

// List bypasses the cache
func (a *CachedZoneDistanceAdapter) List(ctx context.Context) ([]*entities.ZoneDistance, error) {
	return a.adapter.List(ctx)
}

// Upsert writes through and invalidates the cached edge
func (a *CachedZoneDistanceAdapter) Upsert(ctx context.Context, d *entities.ZoneDistance) error {
	if err := a.adapter.Upsert(ctx, d); err != nil {
		return err
	}
	if err := a.cache.Delete(ctx, zoneDistanceCacheKey(d.FromZone, d.ToZone)); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to invalidate zone distance cache")
	}
	return nil
}

func (a *CachedZoneDistanceAdapter) recordHit(ctx context.Context, key string) {
	if a.metrics != nil {
		observability.RecordCacheHit(ctx, a.metrics, key)
	}
}

func (a *CachedZoneDistanceAdapter) recordMiss(ctx context.Context, key string) {
	if a.metrics != nil {
		observability.RecordCacheMiss(ctx, a.metrics, key)
	}
}
