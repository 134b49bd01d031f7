package policy

import (
	"fmt"
	"time"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/priority"
)

// Flag is the headline label shown next to a task
type Flag string

const (
	FlagReturned      Flag = "RETURNED"
	FlagManual        Flag = "MANUAL"
	FlagAtRisk        Flag = "AT_RISK"
	FlagHighPriority  Flag = "HIGH_PRIORITY"
	FlagElevated      Flag = "ELEVATED"
	FlagStandard      Flag = "STANDARD"
	FlagAccepted      Flag = "ACCEPTED"
	FlagAccessibility Flag = "ACCESSIBILITY"
)

// AppointmentAtRiskHours is the window before an appointment in which an unassigned task is at risk
const AppointmentAtRiskHours = 2

var flagReasons = map[Flag]string{
	FlagReturned:      "Driver declined. Closed-loop resolution required.",
	FlagManual:        "System could not safely auto-assign. Staff must select a resource.",
	FlagAtRisk:        "Appointment is near. Assign now to prevent missed care.",
	FlagHighPriority:  "High priority case. Keep transport plan tight.",
	FlagElevated:      "Elevated priority case.",
	FlagStandard:      "Routine transport.",
	FlagAccepted:      "You accepted this task.",
	FlagAccessibility: "Wheelchair accessible vehicle required.",
}

// Reason is the human-readable explanation of a flag
func (f Flag) Reason() string {
	return flagReasons[f]
}

// StaffFlag labels an open queue entry; the first matching rule wins
func StaffFlag(task *entities.TransportTask, appt *entities.Appointment, now time.Time) Flag {
	hours := appt.HoursUntil(now)
	switch {
	case task.Returned():
		return FlagReturned
	case task.Status == entities.TaskStatusManualRequired:
		return FlagManual
	case hours >= 0 && hours <= AppointmentAtRiskHours:
		return FlagAtRisk
	case appt.PriorityScore >= priority.HighPriorityThreshold:
		return FlagHighPriority
	case appt.PriorityScore >= priority.ElevatedThreshold:
		return FlagElevated
	default:
		return FlagStandard
	}
}

// DriverFlag labels a task on a driver's list
func DriverFlag(task *entities.TransportTask, appt *entities.Appointment, wheelchairRequired bool) Flag {
	switch {
	case task.Status == entities.TaskStatusAccepted:
		return FlagAccepted
	case appt.PriorityScore >= priority.HighPriorityThreshold:
		return FlagHighPriority
	case appt.PriorityScore >= priority.ElevatedThreshold:
		return FlagElevated
	case wheelchairRequired:
		return FlagAccessibility
	default:
		return FlagStandard
	}
}

// Countdown renders the time left until an appointment as "Xh Ym", or "Overdue by Xh Ym"
func Countdown(until time.Duration) string {
	overdue := until < 0
	if overdue {
		until = -until
	}
	h := int(until / time.Hour)
	m := int((until % time.Hour) / time.Minute)
	if overdue {
		return fmt.Sprintf("Overdue by %dh %dm", h, m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
