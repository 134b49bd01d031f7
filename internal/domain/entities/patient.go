package entities

import (
	"time"
)

// MobilityNeed describes the assistance a patient needs during transport
type MobilityNeed string

const (
	MobilityNone       MobilityNeed = "NONE"
	MobilityAssist     MobilityNeed = "ASSIST"
	MobilityWheelchair MobilityNeed = "WHEELCHAIR"
)

// Valid reports whether m is a known mobility need
func (m MobilityNeed) Valid() bool {
	switch m {
	case MobilityNone, MobilityAssist, MobilityWheelchair:
		return true
	}
	return false
}

// RequiresWheelchair reports whether only wheelchair-capable resources may serve m
func (m MobilityNeed) RequiresWheelchair() bool {
	return m == MobilityWheelchair
}

// Patient is the person being transported. Immutable once created.
type Patient struct {
	ID                 string       `json:"id" db:"id"`
	PickupZone         Zone         `json:"pickup_zone" db:"pickup_zone"`
	MobilityNeed       MobilityNeed `json:"mobility_need" db:"mobility_need"`
	WheelchairRequired bool         `json:"wheelchair_required" db:"wheelchair_required"`
	ExternalRef        *string      `json:"external_ref,omitempty" db:"external_ref"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
}

// NewPatient builds a patient and fixes its capability flag from the mobility need
func NewPatient(id string, zone Zone, need MobilityNeed, externalRef *string, now time.Time) *Patient {
	return &Patient{
		ID:                 id,
		PickupZone:         zone,
		MobilityNeed:       need,
		WheelchairRequired: need.RequiresWheelchair(),
		ExternalRef:        externalRef,
		CreatedAt:          now,
	}
}
