package entities

// Zone is a named pickup or destination area used by the static distance table
type Zone string

const (
	ZoneA        Zone = "A"
	ZoneB        Zone = "B"
	ZoneC        Zone = "C"
	ZoneHospital Zone = "HOSPITAL"
	ZoneNursing  Zone = "NURSING"
)

// PickupZones lists the zones a patient can be collected from
var PickupZones = []Zone{ZoneA, ZoneB, ZoneC}

// Valid reports whether z is a known zone
func (z Zone) Valid() bool {
	switch z {
	case ZoneA, ZoneB, ZoneC, ZoneHospital, ZoneNursing:
		return true
	}
	return false
}

// IsPickup reports whether z is a patient pickup zone
func (z Zone) IsPickup() bool {
	switch z {
	case ZoneA, ZoneB, ZoneC:
		return true
	}
	return false
}

// Destination is where an appointment takes place
type Destination string

const (
	DestinationHospital       Destination = "HOSPITAL"
	DestinationNursingStation Destination = "NURSING_STATION"
)

// Valid reports whether d is a known destination
func (d Destination) Valid() bool {
	return d == DestinationHospital || d == DestinationNursingStation
}

// Zone maps a destination onto the distance table
func (d Destination) Zone() Zone {
	if d == DestinationNursingStation {
		return ZoneNursing
	}
	return ZoneHospital
}

// ZoneDistance is a directed edge of the static distance table
type ZoneDistance struct {
	FromZone Zone    `json:"from_zone" db:"from_zone"`
	ToZone   Zone    `json:"to_zone" db:"to_zone"`
	Km       float64 `json:"km" db:"km"`
}
