// Package policy holds the dispatch decision rules: when a declined task is forced into
// manual resolution, when routine dispatch is locked, and how queue entries are flagged.
package policy

import (
	"github.com/zatekoja/clearlink/backend/internal/domain/priority"
	"github.com/zatekoja/clearlink/backend/internal/domain/sla"
)

// EscalationRule names the reason a declined task was escalated
type EscalationRule string

const (
	RuleSLAOverdue          EscalationRule = "sla_overdue"
	RuleHighPriority        EscalationRule = "high_priority"
	RuleRepeatDeclineScored EscalationRule = "elevated_repeat_decline"
	RuleRepeatDeclineAtRisk EscalationRule = "at_risk_repeat_decline"
)

// DeclineInput is what the decline decision depends on.
// PriorDeclines counts declines recorded before the one being decided.
type DeclineInput struct {
	Risk          sla.Risk
	PriorityScore int
	PriorDeclines int
}

// DeclineVerdict is the outcome of EvaluateDecline. Rule is the first rule that matched.
type DeclineVerdict struct {
	Escalate bool             `json:"escalate"`
	Rule     EscalationRule   `json:"rule,omitempty"`
	Matched  []EscalationRule `json:"matched,omitempty"`
}

// EvaluateDecline decides whether a declined task is re-queued or sent to manual resolution
func EvaluateDecline(in DeclineInput) DeclineVerdict {
	var matched []EscalationRule
	if in.Risk.Overdue {
		matched = append(matched, RuleSLAOverdue)
	}
	if in.PriorityScore >= priority.HighPriorityThreshold {
		matched = append(matched, RuleHighPriority)
	}
	if in.PriorityScore >= priority.ElevatedThreshold && in.PriorDeclines >= 1 {
		matched = append(matched, RuleRepeatDeclineScored)
	}
	if in.Risk.AtRisk && in.PriorDeclines >= 2 {
		matched = append(matched, RuleRepeatDeclineAtRisk)
	}

	if len(matched) == 0 {
		return DeclineVerdict{}
	}
	return DeclineVerdict{Escalate: true, Rule: matched[0], Matched: matched}
}
