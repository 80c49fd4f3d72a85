package models

import (
	"time"

	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
)

// Profile is one immutable snapshot of a citizen's circumstances. Every
// update produces a new version; old versions stay readable so past ledger
// entries remain reproducible until the user requests erasure.
type Profile struct {
	UserID    domain.UserID         `json:"user_id"`
	Version   domain.ProfileVersion `json:"version"`
	Fields    domain.Fields         `json:"fields"`
	CreatedAt time.Time             `json:"created_at"`
}

// ValidateFields rejects snapshots with malformed field values before they
// are versioned.
func ValidateFields(fields domain.Fields) error {
	if len(fields) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "profile requires at least one field")
	}
	for name, v := range fields {
		if name == "" {
			return dErrors.New(dErrors.CodeBadRequest, "profile field name cannot be empty")
		}
		if !v.Kind.IsValid() {
			return dErrors.Newf(dErrors.CodeBadRequest, "profile field %q has unknown kind %q", name, string(v.Kind))
		}
	}
	return nil
}
