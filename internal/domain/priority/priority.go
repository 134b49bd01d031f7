// Package priority converts clinical and logistical attributes of an appointment into a
// bounded urgency score and the service-level deadline that follows from it.
package priority

import (
	"encoding/json"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
)

const (
	// MaxScore caps the summed bucket points
	MaxScore = 120
	// MaxAccessRisk caps the access-risk bucket
	MaxAccessRisk = 30
	// HighPriorityThreshold is the score at or above which a case is treated as high risk
	HighPriorityThreshold = 90
	// ElevatedThreshold marks an elevated case
	ElevatedThreshold = 75
)

// Input is everything the score depends on
type Input struct {
	UrgencyTier           int                   `json:"urgency_tier"`
	HoursUntilAppointment float64               `json:"hours_until_appointment"`
	DistanceBand          int                   `json:"distance_band"`
	WinterMode            bool                  `json:"winter_mode"`
	MobilityNeed          entities.MobilityNeed `json:"mobility_need"`
	MissedHistory         int                   `json:"missed_history"`
}

// AccessRisk itemises the access bucket before and after the cap
type AccessRisk struct {
	DistancePoints int `json:"distance_points"`
	WinterPoints   int `json:"winter_points"`
	MobilityPoints int `json:"mobility_points"`
	Capped         int `json:"capped_at_30"`
}

// Points holds each bucket's contribution
type Points struct {
	Urgency    int        `json:"urgency_points"`
	TimeRisk   int        `json:"time_risk_points"`
	AccessRisk AccessRisk `json:"access_risk"`
	Missed     int        `json:"missed_points"`
}

// Breakdown is the persisted explanation of a score
type Breakdown struct {
	Inputs Input  `json:"inputs"`
	Points Points `json:"points"`
	Total  int    `json:"total"`
}

// Compute scores an appointment. It is deterministic in its input.
func Compute(in Input) Breakdown {
	access := AccessRisk{
		DistancePoints: distancePoints(in.DistanceBand),
		WinterPoints:   winterPoints(in.WinterMode),
		MobilityPoints: mobilityPoints(in.MobilityNeed),
	}
	access.Capped = min(MaxAccessRisk, access.DistancePoints+access.WinterPoints+access.MobilityPoints)

	points := Points{
		Urgency:    urgencyPoints(in.UrgencyTier),
		TimeRisk:   timeRiskPoints(in.HoursUntilAppointment),
		AccessRisk: access,
		Missed:     missedPoints(in.MissedHistory),
	}

	// Inputs are stored exactly as scored so the breakdown recomputes to the same total.
	return Breakdown{
		Inputs: in,
		Points: points,
		Total:  min(MaxScore, points.Urgency+points.TimeRisk+points.AccessRisk.Capped+points.Missed),
	}
}

// Score is Compute(in).Total
func Score(in Input) int {
	return Compute(in).Total
}

// SLAHours maps a score onto the deadline budget for resolving the task
func SLAHours(score int) int {
	switch {
	case score >= 90:
		return 12
	case score >= 70:
		return 24
	case score >= 40:
		return 48
	default:
		return 72
	}
}

// JSON serialises the breakdown for storage on the appointment
func (b Breakdown) JSON() (json.RawMessage, error) {
	return json.Marshal(b)
}

func urgencyPoints(tier int) int {
	switch tier {
	case 2:
		return 40
	case 1:
		return 20
	default:
		return 0
	}
}

// Overdue appointments (h <= 0) score the same as h <= 24; lateness is judged by SLA risk.
func timeRiskPoints(h float64) int {
	switch {
	case h <= 24:
		return 25
	case h <= 48:
		return 18
	case h <= 72:
		return 10
	default:
		return 0
	}
}

func distancePoints(band int) int {
	switch band {
	case 2:
		return 22
	case 1:
		return 12
	default:
		return 0
	}
}

func winterPoints(winter bool) int {
	if winter {
		return 5
	}
	return 0
}

func mobilityPoints(need entities.MobilityNeed) int {
	switch need {
	case entities.MobilityWheelchair:
		return 10
	case entities.MobilityAssist:
		return 6
	default:
		return 0
	}
}

func missedPoints(missed int) int {
	switch {
	case missed >= 3:
		return 25
	case missed == 2:
		return 16
	case missed == 1:
		return 8
	default:
		return 0
	}
}
