package repositories

import (
	"context"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
)

// ZoneDistanceRepository defines the interface for the static zone distance table
type ZoneDistanceRepository interface {
	// Get returns the directed distance between two zones; ok is false when no edge exists
	Get(ctx context.Context, from, to entities.Zone) (km float64, ok bool, err error)

	// List returns every edge
	List(ctx context.Context) ([]*entities.ZoneDistance, error)

	// Upsert creates or replaces an edge
	Upsert(ctx context.Context, distance *entities.ZoneDistance) error
}
