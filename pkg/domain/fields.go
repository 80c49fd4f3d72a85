package domain

import "strings"

// FieldKind discriminates the closed profile field variant. Profile data
// arrives from the profile collaborator already typed; the engine never
// guesses types at evaluation time.
type FieldKind string

const (
	FieldNumber   FieldKind = "number"
	FieldString   FieldKind = "string"
	FieldBool     FieldKind = "bool"
	FieldLocation FieldKind = "location"
)

func (k FieldKind) IsValid() bool {
	switch k {
	case FieldNumber, FieldString, FieldBool, FieldLocation:
		return true
	}
	return false
}

// FieldValue is one typed profile field. Exactly the slot named by Kind is
// meaningful; the rest stay zero.
type FieldValue struct {
	Kind FieldKind `json:"kind"`
	Num  float64   `json:"num,omitempty"`
	Str  string    `json:"str,omitempty"`
	Bool bool      `json:"bool,omitempty"`
	Loc  Location  `json:"loc,omitempty"`
}

func Number(v float64) FieldValue {
	return FieldValue{Kind: FieldNumber, Num: v}
}

func String(v string) FieldValue {
	return FieldValue{Kind: FieldString, Str: v}
}

func Bool(v bool) FieldValue {
	return FieldValue{Kind: FieldBool, Bool: v}
}

func LocationField(v Location) FieldValue {
	return FieldValue{Kind: FieldLocation, Loc: v}
}

// Fields is an immutable-by-convention snapshot of profile fields keyed by
// field name. Callers must not mutate a Fields map after handing it to the
// engine; profile updates create a new snapshot instead.
type Fields map[string]FieldValue

// Clone returns an independent copy so stored snapshots cannot be mutated
// through the caller's map.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Location is the hierarchical geography used by geo-scope criteria:
// state → district → pincode, broadest first. Empty levels mean "whole of
// the enclosing level".
type Location struct {
	State    string `json:"state,omitempty"`
	District string `json:"district,omitempty"`
	Pincode  string `json:"pincode,omitempty"`
}

func (l Location) IsZero() bool {
	return l.State == "" && l.District == "" && l.Pincode == ""
}

// Within reports whether l falls inside (or equals) scope. A scope with an
// empty level matches every value at that level, so scope {State:"Maharashtra"}
// contains every district and pincode in the state.
func (l Location) Within(scope Location) bool {
	if scope.State != "" && !strings.EqualFold(l.State, scope.State) {
		return false
	}
	if scope.District != "" && !strings.EqualFold(l.District, scope.District) {
		return false
	}
	if scope.Pincode != "" && l.Pincode != scope.Pincode {
		return false
	}
	return true
}
