// Package rules implements the predicate model: typed eligibility criteria
// evaluated against profile field snapshots. Everything in this package is
// pure and safe for concurrent use without synchronization.
package rules

import (
	"strings"

	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
)

// Kind discriminates the closed criterion variant. Unknown kinds are a
// data-integrity defect in the catalog, not a runtime branch to duck-type.
type Kind string

const (
	KindRange   Kind = "range"
	KindSet     Kind = "set"
	KindGeo     Kind = "geo"
	KindBoolean Kind = "boolean"
	KindDerived Kind = "derived"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindRange, KindSet, KindGeo, KindBoolean, KindDerived:
		return true
	}
	return false
}

// Criterion is one typed predicate over a named profile field. Immutable once
// created; the catalog collaborator constructs these and the engine only
// reads them.
type Criterion struct {
	Field string `json:"field"`
	Kind  Kind   `json:"kind"`

	// Range operands; either bound may be absent.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	// Set-membership operand.
	Allowed []string `json:"allowed,omitempty"`

	// Geo-scope operand.
	Scope domain.Location `json:"scope,omitempty"`

	// Boolean operand.
	Expected bool `json:"expected,omitempty"`

	// Derived predicate name, resolved through a Registry.
	Predicate string `json:"predicate,omitempty"`

	// FailureHint is the human-readable unmet-requirement description shown
	// to the citizen. Defaults to the field name when empty.
	FailureHint string `json:"failure_hint,omitempty"`
}

// Validate rejects malformed criteria at publish time so evaluation never
// sees a half-built predicate.
func (c Criterion) Validate() error {
	if !c.Kind.IsValid() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "unknown criterion kind %q", string(c.Kind))
	}
	switch c.Kind {
	case KindRange:
		if c.Field == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "range criterion requires a field")
		}
		if c.Min == nil && c.Max == nil {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "range criterion on %q has no bounds", c.Field)
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "range criterion on %q has min above max", c.Field)
		}
	case KindSet:
		if c.Field == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "set criterion requires a field")
		}
		if len(c.Allowed) == 0 {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "set criterion on %q has an empty allowed set", c.Field)
		}
	case KindGeo:
		if c.Field == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "geo criterion requires a field")
		}
		if c.Scope.IsZero() {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "geo criterion on %q has an empty scope", c.Field)
		}
	case KindBoolean:
		if c.Field == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "boolean criterion requires a field")
		}
	case KindDerived:
		if c.Predicate == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "derived criterion requires a predicate name")
		}
	}
	return nil
}

// CheckResult is the outcome of evaluating one criterion.
//
// Missing=true means the profile lacks the data to evaluate at all, which is
// distinct from Satisfied=false: missing data surfaces as a requirement
// needing user input, not a hard ineligibility.
type CheckResult struct {
	Satisfied bool
	Missing   bool
	Hint      string
}

// Hint returns the unmet-requirement text for this criterion.
func (c Criterion) hint() string {
	if c.FailureHint != "" {
		return c.FailureHint
	}
	if c.Field != "" {
		return c.Field
	}
	return c.Predicate
}

// Check evaluates the criterion against a field snapshot. A type mismatch
// between the criterion and the profile field is a data-integrity error
// (CodeInvariantViolation), surfaced distinctly from ordinary ineligibility.
func (c Criterion) Check(fields domain.Fields, reg *Registry) (CheckResult, error) {
	switch c.Kind {
	case KindRange:
		return c.checkRange(fields)
	case KindSet:
		return c.checkSet(fields)
	case KindGeo:
		return c.checkGeo(fields)
	case KindBoolean:
		return c.checkBoolean(fields)
	case KindDerived:
		return c.checkDerived(fields, reg)
	default:
		return CheckResult{}, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown criterion kind %q", string(c.Kind))
	}
}

func (c Criterion) checkRange(fields domain.Fields) (CheckResult, error) {
	v, ok := fields[c.Field]
	if !ok {
		return CheckResult{Missing: true, Hint: c.hint()}, nil
	}
	if v.Kind != domain.FieldNumber {
		return CheckResult{}, dErrors.Newf(dErrors.CodeInvariantViolation,
			"range criterion on %q expects a number, profile has %s", c.Field, v.Kind)
	}
	if c.Min != nil && v.Num < *c.Min {
		return CheckResult{Hint: c.hint()}, nil
	}
	if c.Max != nil && v.Num > *c.Max {
		return CheckResult{Hint: c.hint()}, nil
	}
	return CheckResult{Satisfied: true}, nil
}

func (c Criterion) checkSet(fields domain.Fields) (CheckResult, error) {
	v, ok := fields[c.Field]
	if !ok {
		return CheckResult{Missing: true, Hint: c.hint()}, nil
	}
	if v.Kind != domain.FieldString {
		return CheckResult{}, dErrors.Newf(dErrors.CodeInvariantViolation,
			"set criterion on %q expects a string, profile has %s", c.Field, v.Kind)
	}
	for _, allowed := range c.Allowed {
		if strings.EqualFold(strings.TrimSpace(v.Str), strings.TrimSpace(allowed)) {
			return CheckResult{Satisfied: true}, nil
		}
	}
	return CheckResult{Hint: c.hint()}, nil
}

func (c Criterion) checkGeo(fields domain.Fields) (CheckResult, error) {
	v, ok := fields[c.Field]
	if !ok {
		return CheckResult{Missing: true, Hint: c.hint()}, nil
	}
	if v.Kind != domain.FieldLocation {
		return CheckResult{}, dErrors.Newf(dErrors.CodeInvariantViolation,
			"geo criterion on %q expects a location, profile has %s", c.Field, v.Kind)
	}
	if v.Loc.Within(c.Scope) {
		return CheckResult{Satisfied: true}, nil
	}
	return CheckResult{Hint: c.hint()}, nil
}

func (c Criterion) checkBoolean(fields domain.Fields) (CheckResult, error) {
	v, ok := fields[c.Field]
	if !ok {
		return CheckResult{Missing: true, Hint: c.hint()}, nil
	}
	if v.Kind != domain.FieldBool {
		return CheckResult{}, dErrors.Newf(dErrors.CodeInvariantViolation,
			"boolean criterion on %q expects a bool, profile has %s", c.Field, v.Kind)
	}
	if v.Bool == c.Expected {
		return CheckResult{Satisfied: true}, nil
	}
	return CheckResult{Hint: c.hint()}, nil
}

func (c Criterion) checkDerived(fields domain.Fields, reg *Registry) (CheckResult, error) {
	if reg == nil {
		return CheckResult{}, dErrors.Newf(dErrors.CodeInvariantViolation,
			"derived criterion %q with no predicate registry", c.Predicate)
	}
	fn, ok := reg.Lookup(c.Predicate)
	if !ok {
		return CheckResult{}, dErrors.Newf(dErrors.CodeInvariantViolation,
			"unknown derived predicate %q", c.Predicate)
	}
	satisfied, missing, err := fn(fields)
	if err != nil {
		return CheckResult{}, err
	}
	if missing {
		return CheckResult{Missing: true, Hint: c.hint()}, nil
	}
	if satisfied {
		return CheckResult{Satisfied: true}, nil
	}
	return CheckResult{Hint: c.hint()}, nil
}
