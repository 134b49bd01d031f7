package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

var resourceColumns = []string{
	"id", "type", "display_name", "driver_user_id", "wheelchair_ok", "start_zone",
	"reliability_score", "is_active", "total_assigned", "total_declined", "created_at",
}

// ResourceAdapter implements the ResourceRepository interface
type ResourceAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewResourceAdapter creates a new resource adapter
func NewResourceAdapter(client *postgres.Client) repositories.ResourceRepository {
	return &ResourceAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new resource
func (a *ResourceAdapter) Create(ctx context.Context, r *entities.Resource) error {
	query, args, err := a.db.Insert("resources").Rows(goqu.Record{
		"id":                r.ID,
		"type":              string(r.Type),
		"display_name":      r.DisplayName,
		"driver_user_id":    nullableString(r.DriverUserID),
		"wheelchair_ok":     r.WheelchairOK,
		"start_zone":        string(r.StartZone),
		"reliability_score": r.ReliabilityScore,
		"is_active":         r.IsActive,
		"total_assigned":    r.TotalAssigned,
		"total_declined":    r.TotalDeclined,
		"created_at":        r.CreatedAt,
	}).OnConflict(goqu.DoNothing()).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create resource", err)
	}
	return nil
}

// GetByID retrieves a resource by ID
func (a *ResourceAdapter) GetByID(ctx context.Context, id string) (*entities.Resource, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("resource with id %s not found", id))
}

// GetByDriverUserID retrieves the resource linked to a driver account
func (a *ResourceAdapter) GetByDriverUserID(ctx context.Context, userID string) (*entities.Resource, error) {
	return a.getOne(ctx, goqu.Ex{"driver_user_id": userID}, fmt.Sprintf("no resource linked to user %s", userID))
}

// SetActive takes a resource in or out of service
func (a *ResourceAdapter) SetActive(ctx context.Context, id string, active bool) error {
	query, args, err := a.db.Update("resources").
		Set(goqu.Record{"is_active": active}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update resource", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("resource with id %s not found", id))
	}
	return nil
}

func (a *ResourceAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.Resource, error) {
	query, args, err := a.db.Select(columns(resourceColumns)...).
		From("resources").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	resource := &entities.Resource{}
	err = a.client.DBX().GetContext(ctx, resource, query, args...)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get resource", err)
	}
	return resource, nil
}

// GetByIDs retrieves multiple resources by their IDs
func (a *ResourceAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Resource, error) {
	if len(ids) == 0 {
		return []*entities.Resource{}, nil
	}
	return a.selectMany(ctx, a.db.Select(columns(resourceColumns)...).From("resources").Where(goqu.Ex{"id": ids}))
}

// Find retrieves resources matching the filter, ordered by id
func (a *ResourceAdapter) Find(ctx context.Context, filter repositories.ResourceFilter) ([]*entities.Resource, error) {
	ds := a.db.Select(columns(resourceColumns)...).From("resources").Order(goqu.C("id").Asc())
	if filter.ActiveOnly {
		ds = ds.Where(goqu.C("is_active").IsTrue())
	}
	if filter.WheelchairOK != nil {
		ds = ds.Where(goqu.C("wheelchair_ok").Eq(*filter.WheelchairOK))
	}
	return a.selectMany(ctx, ds)
}

func (a *ResourceAdapter) selectMany(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Resource, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	resources := []*entities.Resource{}
	if err := a.client.DBX().SelectContext(ctx, &resources, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list resources", err)
	}
	return resources, nil
}
