package entities

import (
	"encoding/json"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled   AppointmentStatus = "SCHEDULED"
	AppointmentStatusRescheduled AppointmentStatus = "RESCHEDULED"
)

// Appointment is a clinical visit the patient needs transport to.
// PriorityScore and PriorityBreakdown are a snapshot taken at creation or reschedule.
type Appointment struct {
	ID                string            `json:"id" db:"id"`
	PatientID         string            `json:"patient_id" db:"patient_id"`
	Destination       Destination       `json:"destination" db:"destination"`
	ScheduledAt       time.Time         `json:"scheduled_at" db:"scheduled_at"`
	UrgencyTier       int               `json:"urgency_tier" db:"urgency_tier"`
	DistanceBand      int               `json:"distance_band" db:"distance_band"`
	WinterMode        bool              `json:"winter_mode" db:"winter_mode"`
	MissedHistory     int               `json:"missed_history" db:"missed_history"`
	ReasonCode        string            `json:"reason_code" db:"reason_code"`
	PriorityScore     int               `json:"priority_score" db:"priority_score"`
	PriorityBreakdown json.RawMessage   `json:"priority_breakdown" db:"priority_breakdown"`
	Status            AppointmentStatus `json:"status" db:"status"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

// HoursUntil returns the signed number of hours from now until the appointment
func (a *Appointment) HoursUntil(now time.Time) float64 {
	return a.ScheduledAt.Sub(now).Hours()
}

// AppointmentUpdate carries the fields a reschedule rewrites on the appointment
type AppointmentUpdate struct {
	AppointmentID     string
	ScheduledAt       time.Time
	Status            AppointmentStatus
	PriorityScore     int
	PriorityBreakdown json.RawMessage
}
