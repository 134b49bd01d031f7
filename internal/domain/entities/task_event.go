package entities

import (
	"time"

	"github.com/google/uuid"
)

// TaskEvent is published on the event bus after a task transition commits,
// so live queue views can refresh without polling.
type TaskEvent struct {
	ID         string      `json:"id"`
	TaskID     string      `json:"task_id"`
	Action     AuditAction `json:"action"`
	FromStatus TaskStatus  `json:"from_status,omitempty"`
	ToStatus   TaskStatus  `json:"to_status"`
	ResourceID string      `json:"resource_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewTaskEvent creates a task event stamped with at
func NewTaskEvent(taskID string, action AuditAction, from, to TaskStatus, resourceID string, at time.Time) *TaskEvent {
	return &TaskEvent{
		ID:         uuid.New().String(),
		TaskID:     taskID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		ResourceID: resourceID,
		Timestamp:  at,
	}
}
