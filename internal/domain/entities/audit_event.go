package entities

import (
	"time"
)

// AuditAction tags an entry in the audit trail
type AuditAction string

const (
	AuditAppointmentCreated          AuditAction = "APPOINTMENT_CREATED"
	AuditTaskAssignedAuto            AuditAction = "TASK_ASSIGNED_AUTO"
	AuditAutoAssignFailedNoResources AuditAction = "AUTO_ASSIGN_FAILED_NO_RESOURCES"
	AuditTaskAssignedManual          AuditAction = "TASK_ASSIGNED_MANUAL"
	AuditTaskAccepted                AuditAction = "TASK_ACCEPTED"
	AuditTaskDeclinedRequeued        AuditAction = "TASK_DECLINED_REQUEUED"
	AuditAutoEscalatedAfterDecline   AuditAction = "AUTO_ESCALATED_AFTER_DECLINE"
	AuditTaskEscalatedToManual       AuditAction = "TASK_ESCALATED_TO_MANUAL"
	AuditTaskRescheduledPlus24h      AuditAction = "TASK_RESCHEDULED_PLUS_24H"
	AuditResourceAvailability        AuditAction = "RESOURCE_AVAILABILITY_CHANGED"
)

// Audit entity types
const (
	EntityTypeTransportTask = "TransportTask"
	EntityTypeAppointment   = "Appointment"
	EntityTypeResource      = "Resource"
)

// AuditEvent is one append-only audit record
type AuditEvent struct {
	ID          string                 `json:"id" db:"id"`
	ActorUserID string                 `json:"actor_user_id" db:"actor_user_id"`
	ActorRole   Role                   `json:"actor_role" db:"actor_role"`
	Action      AuditAction            `json:"action" db:"action"`
	EntityType  string                 `json:"entity_type" db:"entity_type"`
	EntityID    string                 `json:"entity_id" db:"entity_id"`
	Metadata    map[string]interface{} `json:"metadata" db:"-"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}
