package entities

import (
	"time"
)

// TaskStatus is the lifecycle state of a transport task
type TaskStatus string

const (
	TaskStatusRequested      TaskStatus = "REQUESTED"
	TaskStatusAssigned       TaskStatus = "ASSIGNED"
	TaskStatusAccepted       TaskStatus = "ACCEPTED"
	TaskStatusManualRequired TaskStatus = "MANUAL_REQUIRED"
)

// OpenTaskStatuses are the statuses shown in the staff queue
var OpenTaskStatuses = []TaskStatus{TaskStatusRequested, TaskStatusManualRequired}

// Valid reports whether s is a known task status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusRequested, TaskStatusAssigned, TaskStatusAccepted, TaskStatusManualRequired:
		return true
	}
	return false
}

// HoldsResource reports whether a task in status s must reference an assigned resource
func (s TaskStatus) HoldsResource() bool {
	return s == TaskStatusAssigned || s == TaskStatusAccepted
}

// TransportTask is one transport job for one appointment.
// AssignedResourceID is non-nil iff Status is ASSIGNED or ACCEPTED.
type TransportTask struct {
	ID                 string     `json:"id" db:"id"`
	AppointmentID      string     `json:"appointment_id" db:"appointment_id"`
	Status             TaskStatus `json:"status" db:"status"`
	AssignedResourceID *string    `json:"assigned_resource_id,omitempty" db:"assigned_resource_id"`
	SLAHours           int        `json:"sla_hours" db:"sla_hours"`
	DeclineCount       int        `json:"decline_count" db:"decline_count"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Returned reports whether a driver has declined this task at least once
func (t *TransportTask) Returned() bool {
	return t.DeclineCount > 0
}

// AssignedTo reports whether the task is currently held by resourceID
func (t *TransportTask) AssignedTo(resourceID string) bool {
	return t.AssignedResourceID != nil && *t.AssignedResourceID == resourceID
}

// TaskDetail joins a task with the appointment and patient its decisions depend on
type TaskDetail struct {
	Task        *TransportTask `json:"task"`
	Appointment *Appointment   `json:"appointment"`
	Patient     *Patient       `json:"patient"`
}

// TaskTransition is an atomic compare-and-swap on a task row.
// The write applies only if the row still has ExpectedStatus and ExpectedResourceID
// (nil meaning no resource) and, when set, ExpectedDeclineCount. A decline followed by a
// reassignment to the same resource restores status and resource but not the count.
// Counter bumps and the appointment update commit with it; with RequireActiveResource the
// counter resource must still be active at commit.
type TaskTransition struct {
	TaskID                string
	ExpectedStatus        TaskStatus
	ExpectedResourceID    *string
	ExpectedDeclineCount  *int
	NewStatus             TaskStatus
	NewResourceID         *string
	IncrementDeclines     bool
	SLAHours              *int
	CounterResourceID     string
	Counter               ResourceCounter
	RequireActiveResource bool
	Appointment           *AppointmentUpdate
	At                    time.Time
}

// NewTransportRequest bundles the rows created together by a transport request
type NewTransportRequest struct {
	Patient     *Patient
	Appointment *Appointment
	Task        *TransportTask
}

// StringPtr returns a pointer to a copy of s
func StringPtr(s string) *string {
	return &s
}

// SameResource compares two optional resource ids
func SameResource(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
