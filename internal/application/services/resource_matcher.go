package services

import (
	"context"
	"sort"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

// DefaultUnreachableKm is the distance assigned to zone pairs missing from the distance table
const DefaultUnreachableKm = 9999

// RankedResource is a resource annotated with its distance to the pickup zone
type RankedResource struct {
	Resource    *entities.Resource `json:"resource"`
	DistanceKm  float64            `json:"distance_km"`
	Reliability float64            `json:"reliability_score"`
	Reachable   bool               `json:"reachable"`
}

// ResourceMatcher ranks active resources for a pickup
type ResourceMatcher struct {
	resources     repositories.ResourceRepository
	distances     repositories.ZoneDistanceRepository
	unreachableKm float64
}

// NewResourceMatcher creates a new resource matcher
func NewResourceMatcher(resources repositories.ResourceRepository, distances repositories.ZoneDistanceRepository, unreachableKm float64) *ResourceMatcher {
	if unreachableKm <= 0 {
		unreachableKm = DefaultUnreachableKm
	}
	return &ResourceMatcher{
		resources:     resources,
		distances:     distances,
		unreachableKm: unreachableKm,
	}
}

// Rank returns the active resources able to serve the pickup, nearest first.
// Ties on distance go to the more reliable resource, then to the lower id.
func (m *ResourceMatcher) Rank(ctx context.Context, pickup entities.Zone, wheelchairRequired bool) ([]RankedResource, error) {
	filter := repositories.ResourceFilter{ActiveOnly: true}
	if wheelchairRequired {
		filter.WheelchairOK = &wheelchairRequired
	}

	candidates, err := m.resources.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	byZone := make(map[entities.Zone]float64)
	ranked := make([]RankedResource, 0, len(candidates))
	for _, r := range candidates {
		// The repository filter is trusted for ordering only; capability is re-checked here.
		if !r.IsActive || !r.CanServe(wheelchairRequired) {
			continue
		}

		km, ok := byZone[r.StartZone]
		if !ok {
			km, err = m.distance(ctx, r.StartZone, pickup)
			if err != nil {
				return nil, err
			}
			byZone[r.StartZone] = km
		}

		ranked = append(ranked, RankedResource{
			Resource:    r,
			DistanceKm:  km,
			Reliability: r.ReliabilityScore,
			Reachable:   km < m.unreachableKm,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if a.Reliability != b.Reliability {
			return a.Reliability > b.Reliability
		}
		return a.Resource.ID < b.Resource.ID
	})

	return ranked, nil
}

// Best returns the top-ranked resource, or nil when nothing can serve the pickup
func (m *ResourceMatcher) Best(ctx context.Context, pickup entities.Zone, wheelchairRequired bool) (*RankedResource, error) {
	ranked, err := m.Rank(ctx, pickup, wheelchairRequired)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, nil
	}
	return &ranked[0], nil
}

func (m *ResourceMatcher) distance(ctx context.Context, from, to entities.Zone) (float64, error) {
	if from == to {
		return 0, nil
	}
	km, ok, err := m.distances.Get(ctx, from, to)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to look up zone distance", err)
	}
	if !ok {
		return m.unreachableKm, nil
	}
	return km, nil
}

// DistanceTable is the static zone distance table as the matcher sees it
type DistanceTable struct {
	Edges         []*entities.ZoneDistance `json:"edges"`
	UnreachableKm float64                  `json:"unreachable_km"`
}

// DistanceTable lists every known edge plus the sentinel used for missing ones
func (m *ResourceMatcher) DistanceTable(ctx context.Context) (*DistanceTable, error) {
	edges, err := m.distances.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list zone distances", err)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].FromZone != edges[j].FromZone {
			return edges[i].FromZone < edges[j].FromZone
		}
		return edges[i].ToZone < edges[j].ToZone
	})
	return &DistanceTable{Edges: edges, UnreachableKm: m.unreachableKm}, nil
}
