package rules

import (
	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
)

// DerivedFunc computes a named predicate from multiple profile fields.
// It reports satisfied, or missing when the inputs it needs are absent.
// Type mismatches on its inputs are data-integrity errors.
type DerivedFunc func(fields domain.Fields) (satisfied bool, missing bool, err error)

// Registry resolves derived predicate names. It is built once at startup and
// never mutated afterwards, so lookups need no locking.
type Registry struct {
	funcs map[string]DerivedFunc
}

// NewRegistry builds a registry from the given predicate table, layered on
// top of the built-in predicates. Caller entries override built-ins.
func NewRegistry(extra map[string]DerivedFunc) *Registry {
	funcs := make(map[string]DerivedFunc, len(builtins)+len(extra))
	for name, fn := range builtins {
		funcs[name] = fn
	}
	for name, fn := range extra {
		funcs[name] = fn
	}
	return &Registry{funcs: funcs}
}

// DefaultRegistry returns a registry with only the built-in predicates.
func DefaultRegistry() *Registry {
	return NewRegistry(nil)
}

func (r *Registry) Lookup(name string) (DerivedFunc, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// povertyLineBase is the annual household income threshold (INR) for a
// single-member household; each dependent raises the line by half the base.
const povertyLineBase = 27000.0

var builtins = map[string]DerivedFunc{
	// isBelowPovertyLine derives BPL status from income and dependents when
	// the profile has no explicit flag from the ration-card registry.
	"isBelowPovertyLine": func(fields domain.Fields) (bool, bool, error) {
		income, ok := fields["income"]
		if !ok {
			return false, true, nil
		}
		if income.Kind != domain.FieldNumber {
			return false, false, dErrors.New(dErrors.CodeInvariantViolation,
				"isBelowPovertyLine expects a numeric income field")
		}
		line := povertyLineBase
		if deps, ok := fields["dependents"]; ok {
			if deps.Kind != domain.FieldNumber {
				return false, false, dErrors.New(dErrors.CodeInvariantViolation,
					"isBelowPovertyLine expects a numeric dependents field")
			}
			line += povertyLineBase / 2 * deps.Num
		}
		return income.Num < line, false, nil
	},

	// isSeniorCitizen mirrors the statutory 60-year threshold.
	"isSeniorCitizen": func(fields domain.Fields) (bool, bool, error) {
		age, ok := fields["age"]
		if !ok {
			return false, true, nil
		}
		if age.Kind != domain.FieldNumber {
			return false, false, dErrors.New(dErrors.CodeInvariantViolation,
				"isSeniorCitizen expects a numeric age field")
		}
		return age.Num >= 60, false, nil
	},
}
