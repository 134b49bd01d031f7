package repositories

import (
	"context"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
)

// TransportTaskRepository defines the interface for transport task data operations
type TransportTaskRepository interface {
	// CreateRequest persists a patient, appointment and task in one transaction
	CreateRequest(ctx context.Context, req *entities.NewTransportRequest) error

	// GetByID retrieves a task by ID
	GetByID(ctx context.Context, id string) (*entities.TransportTask, error)

	// GetDetail retrieves a task with its appointment and patient
	GetDetail(ctx context.Context, id string) (*entities.TaskDetail, error)

	// ApplyTransition commits a compare-and-swap transition. It returns false, with no
	// changes made, when the row no longer matches the expected status, resource and
	// decline count, or when an assignment's resource is no longer active.
	ApplyTransition(ctx context.Context, tr entities.TaskTransition) (bool, error)

	// List retrieves tasks ordered by appointment priority desc, created_at asc, id asc
	List(ctx context.Context, filter TaskFilter) ([]*entities.TransportTask, error)
}

// TaskFilter defines filters for listing tasks
type TaskFilter struct {
	Statuses           []entities.TaskStatus
	AssignedResourceID string
	Limit              int
}
