package models

import (
	"time"

	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
)

// Benefit describes what a scheme pays out. Amount is the fixed or minimum
// payout; MaxAmount is zero for fixed benefits.
type Benefit struct {
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	MaxAmount float64 `json:"max_amount,omitempty"`
}

// Estimate is the single figure used for ranking: the midpoint of a ranged
// benefit, or the fixed amount.
func (b Benefit) Estimate() float64 {
	if b.MaxAmount > b.Amount {
		return (b.Amount + b.MaxAmount) / 2
	}
	return b.Amount
}

// Scheme is the aggregate root for one welfare scheme. The scheme owns its
// RuleSet history; rule sets never outlive their scheme.
//
// Invariants:
//   - ID is a valid slug and immutable
//   - Benefit amounts are non-negative
//   - Rule history lives in the rule-set store, versioned and append-only
type Scheme struct {
	ID          domain.SchemeID `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Benefit     Benefit         `json:"benefit"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func NewScheme(id domain.SchemeID, name string, benefit Benefit, deadline *time.Time, now time.Time) (*Scheme, error) {
	if err := id.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid scheme id")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "scheme name cannot be empty")
	}
	if benefit.Amount < 0 || benefit.MaxAmount < 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "benefit amounts must be non-negative")
	}
	return &Scheme{
		ID:        id,
		Name:      name,
		Benefit:   benefit,
		Deadline:  deadline,
		CreatedAt: now,
	}, nil
}
