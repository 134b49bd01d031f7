package services

import (
	"context"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/policy"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
)

// ResolutionLockFor evaluates the resolution lock against the current open queue
func ResolutionLockFor(ctx context.Context, tasks repositories.TransportTaskRepository) (policy.ResolutionLock, error) {
	open, err := tasks.List(ctx, repositories.TaskFilter{Statuses: entities.OpenTaskStatuses})
	if err != nil {
		return policy.ResolutionLock{}, err
	}

	items := make([]policy.QueueItem, len(open))
	for i, t := range open {
		items[i] = policy.QueueItem{TaskID: t.ID, Status: t.Status, Returned: t.Returned()}
	}
	return policy.EvaluateLock(items), nil
}
