// Package sla classifies how close a transport task is to missing its deadline.
package sla

import (
	"time"

	"github.com/zatekoja/clearlink/backend/internal/domain/providers"
)

// AtRiskFraction is the final share of the SLA window treated as at-risk
const AtRiskFraction = 0.25

// Risk is the SLA position of a task at a given instant
type Risk struct {
	SLAHours       int     `json:"sla_hours"`
	AgeHours       float64 `json:"age_hours"`
	RemainingHours float64 `json:"remaining_hours"`
	Overdue        bool    `json:"overdue"`
	AtRisk         bool    `json:"at_risk"`
}

// Evaluate computes risk for a task created at createdAt with the given SLA budget.
// Overdue when no time remains; at-risk when not overdue and remaining <= 25% of the budget.
func Evaluate(createdAt time.Time, slaHours int, now time.Time) Risk {
	age := now.Sub(createdAt).Hours()
	remaining := float64(slaHours) - age
	overdue := remaining <= 0

	return Risk{
		SLAHours:       slaHours,
		AgeHours:       age,
		RemainingHours: remaining,
		Overdue:        overdue,
		AtRisk:         !overdue && remaining <= AtRiskFraction*float64(slaHours),
	}
}

// Evaluator evaluates risk against a clock
type Evaluator struct {
	clock providers.Clock
}

// NewEvaluator creates an evaluator; a nil clock falls back to the system clock
func NewEvaluator(clock providers.Clock) *Evaluator {
	if clock == nil {
		clock = providers.SystemClock{}
	}
	return &Evaluator{clock: clock}
}

// Evaluate classifies a task created at createdAt with the given SLA budget
func (e *Evaluator) Evaluate(createdAt time.Time, slaHours int) Risk {
	return Evaluate(createdAt, slaHours, e.clock.Now())
}

// Now exposes the evaluator's clock
func (e *Evaluator) Now() time.Time {
	return e.clock.Now()
}
