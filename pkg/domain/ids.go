// Package domain holds the shared vocabulary of the eligibility engine:
// typed identifiers, version numbers, and the closed profile field variant.
// Everything here is a value type with no behavior beyond validation, so the
// package stays import-cycle free.
package domain

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// UserID identifies a citizen across profile versions and ledger entries.
type UserID uuid.UUID

func NewUserID() UserID {
	return UserID(uuid.New())
}

func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("parse user id: %w", err)
	}
	return UserID(u), nil
}

func (u UserID) IsNil() bool {
	return uuid.UUID(u) == uuid.Nil
}

func (u UserID) String() string {
	return uuid.UUID(u).String()
}

// SchemeID is a stable slug for a welfare scheme (e.g. "pm-kisan").
// Slugs rather than UUIDs so that ordering is human-meaningful and
// deterministic tie-breaking in ranking reads naturally.
type SchemeID string

var schemeIDPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func (s SchemeID) Validate() error {
	if s == "" {
		return fmt.Errorf("scheme id is empty")
	}
	if len(s) > 64 {
		return fmt.Errorf("scheme id exceeds 64 characters")
	}
	if !schemeIDPattern.MatchString(string(s)) {
		return fmt.Errorf("scheme id %q is not a lowercase slug", string(s))
	}
	return nil
}

func (s SchemeID) String() string {
	return string(s)
}

// ProfileVersion numbers a user's profile snapshots, starting at 1 and
// strictly increasing per user.
type ProfileVersion int64

// RuleVersion numbers a scheme's rule sets, starting at 1 and strictly
// increasing per scheme.
type RuleVersion int64
