// Package ledger is the append-only record of produced outcomes, keyed by
// (user, scheme, rule-set version, profile version). It answers "what is my
// current result" and "why did my result change", and it is the fan-out
// index for reassessment.
package ledger

import (
	"context"
	"time"

	assessmodels "suvidha/internal/assess/models"
	"suvidha/pkg/domain"
)

// Entry is one immutable ledger record. The current outcome for a
// (user, scheme) pair is the entry with the greatest ProducedAt.
type Entry struct {
	UserID         domain.UserID         `json:"user_id"`
	SchemeID       domain.SchemeID       `json:"scheme_id"`
	ProfileVersion domain.ProfileVersion `json:"profile_version"`
	RuleSetVersion domain.RuleVersion    `json:"rule_set_version"`
	Outcome        assessmodels.Outcome  `json:"outcome"`
	ProducedAt     time.Time             `json:"produced_at"`
}

// Totals are the anonymized aggregate counters that survive erasure.
type Totals struct {
	Eligible   int64 `json:"eligible"`
	Partial    int64 `json:"partial"`
	Ineligible int64 `json:"ineligible"`
}

// Store is the append-only ledger contract. No update, no in-place edit;
// erasure under a privacy request is the only delete path, and it leaves the
// aggregate counters untouched.
type Store interface {
	// Append writes an entry. Returns sentinel.ErrStale when the entry's
	// (ProfileVersion, RuleSetVersion) does not advance on the latest
	// committed entry for the same (user, scheme) pair. This monotonic write
	// guard keeps concurrent reassessments from regressing results.
	Append(ctx context.Context, entry Entry) error

	// History returns all entries for the pair, oldest first.
	History(ctx context.Context, userID domain.UserID, schemeID domain.SchemeID) ([]Entry, error)

	// Current returns the entry with the greatest ProducedAt for the pair;
	// sentinel.ErrNotFound when the pair was never assessed.
	Current(ctx context.Context, userID domain.UserID, schemeID domain.SchemeID) (*Entry, error)

	// UsersAssessedFor returns every user with at least one entry for the
	// scheme. Reassessment fan-out for rule publications.
	UsersAssessedFor(ctx context.Context, schemeID domain.SchemeID) ([]domain.UserID, error)

	// SchemesAssessed returns every scheme the user has an entry for.
	// Reassessment fan-out for profile updates.
	SchemesAssessed(ctx context.Context, userID domain.UserID) ([]domain.SchemeID, error)

	// Erase removes all entries for the user. Idempotent; counters keep
	// their magnitudes.
	Erase(ctx context.Context, userID domain.UserID) error

	// AggregateTotals returns the anonymized per-status counters.
	AggregateTotals(ctx context.Context) (Totals, error)
}
