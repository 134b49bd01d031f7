package policy

import (
	"sort"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/priority"
)

// QueueItem is the slice of an open task the resolution lock looks at
type QueueItem struct {
	TaskID        string
	Status        entities.TaskStatus
	PriorityScore int
	Returned      bool
}

// QueueItemFromDetail projects a task detail onto a QueueItem
func QueueItemFromDetail(d *entities.TaskDetail) QueueItem {
	item := QueueItem{TaskID: d.Task.ID, Status: d.Task.Status, Returned: d.Task.Returned()}
	if d.Appointment != nil {
		item.PriorityScore = d.Appointment.PriorityScore
	}
	return item
}

// ResolutionLock gates routine staff dispatch while returned cases sit in the queue
type ResolutionLock struct {
	Active          bool     `json:"active"`
	ReturnedTaskIDs []string `json:"returned_task_ids"`
}

// EvaluateLock derives the lock from the open queue. Only REQUESTED and MANUAL_REQUIRED
// entries count as open.
func EvaluateLock(queue []QueueItem) ResolutionLock {
	lock := ResolutionLock{ReturnedTaskIDs: []string{}}
	for _, item := range queue {
		if item.Returned && isOpen(item.Status) {
			lock.ReturnedTaskIDs = append(lock.ReturnedTaskIDs, item.TaskID)
		}
	}
	sort.Strings(lock.ReturnedTaskIDs)
	lock.Active = len(lock.ReturnedTaskIDs) > 0
	return lock
}

// AutoAssignAllowed reports whether top-of-queue automatic assignment may run
func (l ResolutionLock) AutoAssignAllowed() bool {
	return !l.Active
}

// CanManualAssign reports whether staff may manually assign the given task under the lock
func (l ResolutionLock) CanManualAssign(item QueueItem) bool {
	if !l.Active {
		return true
	}
	return item.Returned ||
		item.Status == entities.TaskStatusManualRequired ||
		item.PriorityScore >= priority.HighPriorityThreshold
}

func isOpen(status entities.TaskStatus) bool {
	for _, s := range entities.OpenTaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}
