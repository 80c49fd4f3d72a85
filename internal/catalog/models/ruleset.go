package models

import (
	"fmt"
	"time"

	"suvidha/internal/rules"
	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
)

// RuleSet is one immutable, time-scoped version of a scheme's qualification
// logic. A change to the rules publishes a new version; nothing ever mutates
// a published one.
//
// Invariants:
//   - Version increases by one per scheme, starting at 1
//   - Effective ranges of a scheme's versions never overlap
//   - Exactly the latest version has EffectiveUntil == nil
//   - Criteria order is the declared order and drives deterministic output
type RuleSet struct {
	SchemeID      domain.SchemeID    `json:"scheme_id"`
	Version       domain.RuleVersion `json:"version"`
	EffectiveFrom time.Time          `json:"effective_from"`
	// EffectiveUntil is nil while this is the current version; publish of the
	// successor closes it to the successor's EffectiveFrom.
	EffectiveUntil *time.Time `json:"effective_until,omitempty"`
	// Supersedes names the prior version by number only. Weak reference:
	// resolution goes through the store, the rule set does not own its
	// predecessor.
	Supersedes domain.RuleVersion `json:"supersedes,omitempty"`
	Criteria   []rules.Criterion  `json:"criteria"`
}

// Contains reports whether t falls inside the effective range
// [EffectiveFrom, EffectiveUntil).
func (rs *RuleSet) Contains(t time.Time) bool {
	if t.Before(rs.EffectiveFrom) {
		return false
	}
	return rs.EffectiveUntil == nil || t.Before(*rs.EffectiveUntil)
}

// IsCurrent reports whether this is the open-ended latest version.
func (rs *RuleSet) IsCurrent() bool {
	return rs.EffectiveUntil == nil
}

// ValidateCriteria rejects malformed rule definitions at publish time.
func ValidateCriteria(criteria []rules.Criterion) error {
	if len(criteria) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "rule set requires at least one criterion")
	}
	for i, c := range criteria {
		if err := c.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvariantViolation, fmt.Sprintf("criterion %d invalid", i))
		}
	}
	return nil
}
