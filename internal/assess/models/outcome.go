// Package models holds the assessment result types shared by the evaluator,
// the ranker, the ledger, and the reassessment coordinator.
package models

import (
	"time"

	"suvidha/pkg/domain"
)

// Status classifies an outcome. Ordering matters for ranking: eligible
// always precedes partial, partial precedes ineligible.
type Status string

const (
	StatusEligible   Status = "eligible"
	StatusPartial    Status = "partial"
	StatusIneligible Status = "ineligible"
)

// rank bands for status ordering; lower sorts first.
func (s Status) Band() int {
	switch s {
	case StatusEligible:
		return 0
	case StatusPartial:
		return 1
	default:
		return 2
	}
}

// Outcome is the immutable result of evaluating one profile version against
// one rule-set version. Written once to the ledger, never edited, only
// superseded by a newer Outcome for the same (user, scheme) pair.
type Outcome struct {
	SchemeID       domain.SchemeID    `json:"scheme_id"`
	RuleSetVersion domain.RuleVersion `json:"rule_set_version"`
	Status         Status             `json:"status"`
	// Confidence is satisfied-criteria over total criteria, in [0,1].
	Confidence float64 `json:"confidence"`
	// MissingRequirements lists the unmet-requirement descriptions of every
	// failed or unevaluable criterion, in the rule set's declared order.
	// Empty iff Status is eligible.
	MissingRequirements []string   `json:"missing_requirements"`
	EstimatedBenefit    float64    `json:"estimated_benefit"`
	Deadline            *time.Time `json:"deadline,omitempty"`
}
