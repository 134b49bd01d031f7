// Package lifecycle owns the legal status transitions of a transport task and the
// side effects each transition carries.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

// Event is something that moves a task between statuses
type Event string

const (
	EventAutoAssign   Event = "AUTO_ASSIGN"
	EventNoCandidate  Event = "AUTO_ASSIGN_NO_CANDIDATE"
	EventManualAssign Event = "MANUAL_ASSIGN"
	EventAccept       Event = "ACCEPT"
	EventDecline      Event = "DECLINE"
	EventEscalate     Event = "ESCALATE"
	EventReschedule   Event = "RESCHEDULE"
)

// ---------------------------------------------------------------------------
// Transition graph
// ---------------------------------------------------------------------------

// sources lists, per event, the statuses the event may fire from
var sources = map[Event]map[entities.TaskStatus]bool{
	EventAutoAssign:   {entities.TaskStatusRequested: true},
	EventNoCandidate:  {entities.TaskStatusRequested: true},
	EventManualAssign: {entities.TaskStatusRequested: true, entities.TaskStatusManualRequired: true},
	EventAccept:       {entities.TaskStatusAssigned: true},
	EventDecline:      {entities.TaskStatusAssigned: true},
	EventEscalate:     {entities.TaskStatusRequested: true, entities.TaskStatusAssigned: true},
	EventReschedule: {
		entities.TaskStatusRequested:      true,
		entities.TaskStatusAssigned:       true,
		entities.TaskStatusAccepted:       true,
		entities.TaskStatusManualRequired: true,
	},
}

// CanApply reports whether event may fire while a task is in status from
func CanApply(event Event, from entities.TaskStatus) bool {
	return sources[event][from]
}

// ---------------------------------------------------------------------------
// Planning
// ---------------------------------------------------------------------------

// Command carries the inputs a single event needs.
type Command struct {
	Event Event

	// Resource is the assignment target for auto and manual assignment
	Resource *entities.Resource
	// WheelchairRequired is the patient's capability requirement
	WheelchairRequired bool

	// ActingResourceID is the driver's resource for accept and decline
	ActingResourceID string
	// Escalate is the decline verdict
	Escalate bool

	// SLAHours and Appointment carry the recomputed values on reschedule
	SLAHours    int
	Appointment *entities.AppointmentUpdate

	At time.Time
}

// Step is a planned transition: the compare-and-swap to commit and the audit trail it produces
type Step struct {
	Event      Event
	From       entities.TaskStatus
	To         entities.TaskStatus
	ResourceID string
	Transition entities.TaskTransition
	Actions    []entities.AuditAction
}

// Plan validates cmd against the task's current state and returns the transition to commit.
// A stale status or resource mismatch is a CONFLICT error; an unmet wheelchair requirement
// is a CAPABILITY_VIOLATION. A task whose stored resource disagrees with its status is an
// INTERNAL error and is never planned from.
func Plan(task *entities.TransportTask, cmd Command) (*Step, error) {
	if task == nil {
		return nil, apperrors.NewValidationError("task is required")
	}
	if err := checkInvariant(task.ID, task.Status, task.AssignedResourceID); err != nil {
		return nil, err
	}
	if !CanApply(cmd.Event, task.Status) {
		return nil, apperrors.NewConflictError(fmt.Sprintf("task %s is %s: %s not allowed", task.ID, task.Status, cmd.Event))
	}

	declines := task.DeclineCount
	step := &Step{
		Event: cmd.Event,
		From:  task.Status,
		Transition: entities.TaskTransition{
			TaskID:               task.ID,
			ExpectedStatus:       task.Status,
			ExpectedResourceID:   task.AssignedResourceID,
			ExpectedDeclineCount: &declines,
			At:                   cmd.At,
		},
	}

	var err error
	switch cmd.Event {
	case EventAutoAssign:
		err = planAssign(step, cmd, entities.AuditTaskAssignedAuto)
	case EventManualAssign:
		err = planAssign(step, cmd, entities.AuditTaskAssignedManual)
	case EventNoCandidate:
		step.To = entities.TaskStatusManualRequired
		step.Actions = []entities.AuditAction{entities.AuditAutoAssignFailedNoResources}
	case EventAccept:
		err = planAccept(step, task, cmd)
	case EventDecline:
		err = planDecline(step, task, cmd)
	case EventEscalate:
		step.To = entities.TaskStatusManualRequired
		step.Actions = []entities.AuditAction{entities.AuditTaskEscalatedToManual}
	case EventReschedule:
		err = planReschedule(step, cmd)
	default:
		err = apperrors.NewValidationError(fmt.Sprintf("unknown event %q", cmd.Event))
	}
	if err != nil {
		return nil, err
	}

	step.Transition.NewStatus = step.To
	if err := checkInvariant(task.ID, step.To, step.Transition.NewResourceID); err != nil {
		return nil, err
	}
	return step, nil
}

func planAssign(step *Step, cmd Command, action entities.AuditAction) error {
	if cmd.Resource == nil || cmd.Resource.ID == "" {
		return apperrors.NewValidationError("resource is required")
	}
	if !cmd.Resource.IsActive {
		return apperrors.NewConflictError(fmt.Sprintf("resource %s is inactive", cmd.Resource.ID))
	}
	if !cmd.Resource.CanServe(cmd.WheelchairRequired) {
		return apperrors.NewCapabilityError(fmt.Sprintf("resource %s is not wheelchair capable", cmd.Resource.ID))
	}

	step.To = entities.TaskStatusAssigned
	step.ResourceID = cmd.Resource.ID
	step.Transition.NewResourceID = entities.StringPtr(cmd.Resource.ID)
	step.Transition.CounterResourceID = cmd.Resource.ID
	step.Transition.Counter = entities.CounterTotalAssigned
	step.Transition.RequireActiveResource = true
	step.Actions = []entities.AuditAction{action}
	return nil
}

func planAccept(step *Step, task *entities.TransportTask, cmd Command) error {
	if err := checkHolder(task, cmd.ActingResourceID); err != nil {
		return err
	}
	step.To = entities.TaskStatusAccepted
	step.ResourceID = cmd.ActingResourceID
	step.Transition.NewResourceID = entities.StringPtr(cmd.ActingResourceID)
	step.Actions = []entities.AuditAction{entities.AuditTaskAccepted}
	return nil
}

func planDecline(step *Step, task *entities.TransportTask, cmd Command) error {
	if err := checkHolder(task, cmd.ActingResourceID); err != nil {
		return err
	}
	step.To = entities.TaskStatusRequested
	step.Actions = []entities.AuditAction{entities.AuditTaskDeclinedRequeued}
	if cmd.Escalate {
		step.To = entities.TaskStatusManualRequired
		step.Actions = append(step.Actions, entities.AuditAutoEscalatedAfterDecline)
	}
	step.ResourceID = cmd.ActingResourceID
	step.Transition.IncrementDeclines = true
	step.Transition.CounterResourceID = cmd.ActingResourceID
	step.Transition.Counter = entities.CounterTotalDeclined
	return nil
}

func planReschedule(step *Step, cmd Command) error {
	if cmd.Appointment == nil || cmd.SLAHours <= 0 {
		return apperrors.NewValidationError("reschedule requires a recomputed appointment and SLA")
	}
	slaHours := cmd.SLAHours
	step.To = entities.TaskStatusRequested
	step.Transition.SLAHours = &slaHours
	step.Transition.Appointment = cmd.Appointment
	step.Actions = []entities.AuditAction{entities.AuditTaskRescheduledPlus24h}
	return nil
}

func checkHolder(task *entities.TransportTask, actingResourceID string) error {
	if actingResourceID == "" {
		return apperrors.NewValidationError("acting resource is required")
	}
	if !task.AssignedTo(actingResourceID) {
		return apperrors.NewConflictError(fmt.Sprintf("task %s is not assigned to resource %s", task.ID, actingResourceID))
	}
	return nil
}

// checkInvariant verifies that a task holds a resource iff its status requires one
func checkInvariant(taskID string, status entities.TaskStatus, resourceID *string) error {
	if status.HoldsResource() != (resourceID != nil) {
		return apperrors.NewInternalError(fmt.Sprintf("task %s in %s has inconsistent resource assignment", taskID, status), nil)
	}
	return nil
}
