package entities

import (
	"time"
)

// ResourceType distinguishes volunteer drivers from agency vehicles
type ResourceType string

const (
	ResourceTypeVolunteer ResourceType = "VOLUNTEER"
	ResourceTypeVan       ResourceType = "VAN"
)

// ResourceCounter names a cumulative counter on a resource
type ResourceCounter string

const (
	CounterTotalAssigned ResourceCounter = "total_assigned"
	CounterTotalDeclined ResourceCounter = "total_declined"
)

// Resource is a driver or vehicle that can serve transport tasks.
// ReliabilityScore is owned by dispatch administration and never changed by transitions.
type Resource struct {
	ID               string       `json:"id" db:"id"`
	Type             ResourceType `json:"type" db:"type"`
	DisplayName      string       `json:"display_name" db:"display_name"`
	DriverUserID     *string      `json:"driver_user_id,omitempty" db:"driver_user_id"`
	WheelchairOK     bool         `json:"wheelchair_ok" db:"wheelchair_ok"`
	StartZone        Zone         `json:"start_zone" db:"start_zone"`
	ReliabilityScore float64      `json:"reliability_score" db:"reliability_score"`
	IsActive         bool         `json:"is_active" db:"is_active"`
	TotalAssigned    int          `json:"total_assigned" db:"total_assigned"`
	TotalDeclined    int          `json:"total_declined" db:"total_declined"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
}

// CanServe reports whether the resource satisfies the hard capability constraint
func (r *Resource) CanServe(wheelchairRequired bool) bool {
	return !wheelchairRequired || r.WheelchairOK
}
