package database

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

// ZoneDistanceAdapter implements the ZoneDistanceRepository interface
type ZoneDistanceAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewZoneDistanceAdapter creates a new zone distance adapter
func NewZoneDistanceAdapter(client *postgres.Client) repositories.ZoneDistanceRepository {
	return &ZoneDistanceAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Get returns the directed distance between two zones
func (a *ZoneDistanceAdapter) Get(ctx context.Context, from, to entities.Zone) (float64, bool, error) {
	query, args, err := a.db.Select("km").
		From("zone_distances").
		Where(goqu.Ex{"from_zone": string(from), "to_zone": string(to)}).
		ToSQL()
	if err != nil {
		return 0, false, apperrors.NewInternalError("failed to build query", err)
	}

	var km float64
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&km)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.NewInternalError("failed to get zone distance", err)
	}
	return km, true, nil
}

// List returns every edge
func (a *ZoneDistanceAdapter) List(ctx context.Context) ([]*entities.ZoneDistance, error) {
	query, args, err := a.db.Select("from_zone", "to_zone", "km").
		From("zone_distances").
		Order(goqu.C("from_zone").Asc(), goqu.C("to_zone").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	distances := []*entities.ZoneDistance{}
	if err := a.client.DBX().SelectContext(ctx, &distances, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list zone distances", err)
	}
	return distances, nil
}

// Upsert creates or replaces an edge
func (a *ZoneDistanceAdapter) Upsert(ctx context.Context, d *entities.ZoneDistance) error {
	query, args, err := a.db.Insert("zone_distances").
		Rows(goqu.Record{"from_zone": string(d.FromZone), "to_zone": string(d.ToZone), "km": d.Km}).
		OnConflict(goqu.DoUpdate("from_zone, to_zone", goqu.Record{"km": goqu.I("excluded.km")})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert zone distance", err)
	}
	return nil
}
