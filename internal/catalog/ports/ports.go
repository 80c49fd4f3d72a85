// Package ports defines shared interfaces for the catalog module.
// Interfaces live here because they are consumed by the catalog service, the
// assessment service, and the reassessment coordinator alike.
package ports

import (
	"context"
	"time"

	"suvidha/internal/catalog/models"
	"suvidha/internal/rules"
	"suvidha/pkg/domain"
)

// SchemeStore persists scheme metadata.
type SchemeStore interface {
	// Create inserts a scheme; sentinel.ErrConflict if the id exists.
	Create(ctx context.Context, scheme *models.Scheme) error

	// Get returns a scheme; sentinel.ErrNotFound if absent.
	Get(ctx context.Context, schemeID domain.SchemeID) (*models.Scheme, error)

	// List returns all schemes ordered by id.
	List(ctx context.Context) ([]*models.Scheme, error)
}

// RuleSetStore is the versioned, append-only rule storage. Publish is the
// single write path; there are no in-place edits.
type RuleSetStore interface {
	// Publish atomically closes the current version (if any) at effectiveFrom
	// and inserts the next version. Returns sentinel.ErrConflict when
	// effectiveFrom does not advance past the current version's
	// EffectiveFrom. The service validates scheme existence before publish.
	// Serialized per scheme: concurrent publishes for one scheme never
	// interleave, and readers see pre- or post-publish state atomically.
	Publish(ctx context.Context, schemeID domain.SchemeID, criteria []rules.Criterion, effectiveFrom time.Time) (*models.RuleSet, error)

	// Resolve returns the version whose effective range contains at;
	// sentinel.ErrNotFound when the scheme had no published rules at that time.
	Resolve(ctx context.Context, schemeID domain.SchemeID, at time.Time) (*models.RuleSet, error)

	// Current resolves at "now".
	Current(ctx context.Context, schemeID domain.SchemeID) (*models.RuleSet, error)

	// History returns all versions, oldest first.
	History(ctx context.Context, schemeID domain.SchemeID) ([]*models.RuleSet, error)
}

// PublishSink receives rule publication notifications. The reassessment
// coordinator's publisher implements this; tests use a recording stub.
type PublishSink interface {
	RulePublished(ctx context.Context, schemeID domain.SchemeID, version domain.RuleVersion) error
}
