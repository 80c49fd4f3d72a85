// Package assess contains the pure evaluation core: the evaluator that maps
// (profile snapshot, rule-set version) to an outcome, and the ranker that
// orders outcomes for presentation. Neither touches I/O; both are safe for
// concurrent use.
package assess

import (
	"suvidha/internal/assess/models"
	catalogmodels "suvidha/internal/catalog/models"
	"suvidha/internal/rules"
	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
)

// Evaluator is the pure function from (profile fields, rule set) to an
// Outcome. It is deterministic: identical inputs produce byte-identical
// outcomes, which lets the ledger double as a correctness oracle.
type Evaluator struct {
	registry *rules.Registry
}

func NewEvaluator(registry *rules.Registry) *Evaluator {
	if registry == nil {
		registry = rules.DefaultRegistry()
	}
	return &Evaluator{registry: registry}
}

// Evaluate applies every criterion in declared order with AND-semantics:
//   - any hard false            => ineligible
//   - otherwise any missing     => partial
//   - otherwise                 => eligible
//
// Confidence is the share of criteria satisfied with present data.
// A type mismatch between criterion and profile field is a data-integrity
// error and propagates verbatim; it is never folded into ineligibility.
func (e *Evaluator) Evaluate(fields domain.Fields, scheme *catalogmodels.Scheme, ruleSet *catalogmodels.RuleSet) (models.Outcome, error) {
	outcome := models.Outcome{
		SchemeID:            ruleSet.SchemeID,
		RuleSetVersion:      ruleSet.Version,
		MissingRequirements: []string{},
		EstimatedBenefit:    scheme.Benefit.Estimate(),
		Deadline:            scheme.Deadline,
	}

	var satisfied, failed, missing int
	for _, criterion := range ruleSet.Criteria {
		result, err := criterion.Check(fields, e.registry)
		if err != nil {
			return models.Outcome{}, dErrors.Wrap(err, dErrors.CodeInvariantViolation,
				"profile incompatible with rule set "+string(ruleSet.SchemeID))
		}
		switch {
		case result.Satisfied:
			satisfied++
		case result.Missing:
			missing++
			outcome.MissingRequirements = append(outcome.MissingRequirements, result.Hint)
		default:
			failed++
			outcome.MissingRequirements = append(outcome.MissingRequirements, result.Hint)
		}
	}

	total := len(ruleSet.Criteria)
	switch {
	case failed > 0:
		outcome.Status = models.StatusIneligible
	case missing > 0:
		outcome.Status = models.StatusPartial
	default:
		outcome.Status = models.StatusEligible
	}

	if total > 0 {
		outcome.Confidence = float64(satisfied) / float64(total)
	}
	if outcome.Confidence > 1 {
		outcome.Confidence = 1
	}
	return outcome, nil
}
