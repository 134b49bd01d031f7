package repositories

import (
	"context"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
)

// ResourceRepository defines the interface for driver resource data operations
type ResourceRepository interface {
	// Create creates a new resource
	Create(ctx context.Context, resource *entities.Resource) error

	// GetByID retrieves a resource by ID
	GetByID(ctx context.Context, id string) (*entities.Resource, error)

	// GetByIDs retrieves multiple resources by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Resource, error)

	// GetByDriverUserID retrieves the resource linked to a driver account
	GetByDriverUserID(ctx context.Context, userID string) (*entities.Resource, error)

	// Find retrieves resources matching the filter, ordered by id
	Find(ctx context.Context, filter ResourceFilter) ([]*entities.Resource, error)

	// SetActive takes a resource in or out of service
	SetActive(ctx context.Context, id string, active bool) error
}

// ResourceFilter defines filters for finding resources
type ResourceFilter struct {
	ActiveOnly   bool
	WheelchairOK *bool
}
