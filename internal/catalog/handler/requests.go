package handler

import (
	"time"

	"suvidha/internal/catalog/models"
	"suvidha/internal/rules"
)

// RegisterSchemeRequest creates a scheme. The catalog collaborator is the
// expected caller.
type RegisterSchemeRequest struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Benefit  models.Benefit `json:"benefit"`
	Deadline *time.Time     `json:"deadline,omitempty"`
}

// PublishRuleSetRequest publishes the next rule-set version for a scheme.
type PublishRuleSetRequest struct {
	Criteria      []rules.Criterion `json:"criteria"`
	EffectiveFrom *time.Time        `json:"effective_from,omitempty"`
}
