// Package service orchestrates assessments: it resolves the latest profile
// and the currently effective rule sets, runs the pure evaluator, records
// outcomes in the ledger, and ranks the results for presentation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"suvidha/internal/assess"
	assessmodels "suvidha/internal/assess/models"
	catalogmodels "suvidha/internal/catalog/models"
	"suvidha/internal/ledger"
	"suvidha/internal/platform/metrics"
	profilemodels "suvidha/internal/profile/models"
	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
	"suvidha/pkg/platform/sentinel"
)

// Catalog is the slice of the catalog service the assessor needs.
type Catalog interface {
	GetScheme(ctx context.Context, id domain.SchemeID) (*catalogmodels.Scheme, error)
	ListSchemes(ctx context.Context) ([]*catalogmodels.Scheme, error)
	Current(ctx context.Context, schemeID domain.SchemeID) (*catalogmodels.RuleSet, error)
	ResolveAt(ctx context.Context, schemeID domain.SchemeID, at time.Time) (*catalogmodels.RuleSet, error)
}

// Profiles is the slice of the profile service the assessor needs.
type Profiles interface {
	Get(ctx context.Context, userID domain.UserID, version domain.ProfileVersion) (*profilemodels.Profile, error)
	Erase(ctx context.Context, userID domain.UserID) error
}

// SchemeFailure reports a scheme that could not be assessed in an otherwise
// successful request. One bad scheme never fails the whole assessment.
type SchemeFailure struct {
	SchemeID domain.SchemeID `json:"scheme_id"`
	Reason   string          `json:"reason"`
}

// Result is one ranked assessment response.
type Result struct {
	UserID         domain.UserID         `json:"user_id"`
	ProfileVersion domain.ProfileVersion `json:"profile_version"`
	Outcomes       []assess.Ranked       `json:"outcomes"`
	Failures       []SchemeFailure       `json:"failures,omitempty"`
	AssessedAt     time.Time             `json:"assessed_at"`
}

type Service struct {
	catalog   Catalog
	profiles  Profiles
	ledger    ledger.Store
	evaluator *assess.Evaluator
	ranker    *assess.Ranker
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithRanker(r *assess.Ranker) Option {
	return func(s *Service) { s.ranker = r }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(catalog Catalog, profiles Profiles, store ledger.Store, evaluator *assess.Evaluator, opts ...Option) *Service {
	s := &Service{
		catalog:   catalog,
		profiles:  profiles,
		ledger:    store,
		evaluator: evaluator,
		ranker:    assess.NewRanker(assess.DefaultRankWeights(), 0),
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assess evaluates a profile against the requested schemes, or against the
// full catalog when schemeIDs is empty. A zero profileVersion means the
// latest snapshot under the currently effective rule sets; a pinned version
// replays that snapshot under the rule sets that were effective when it was
// captured. Produced outcomes go through the ledger's monotonic guard, so
// replays of old versions are served without being recorded.
func (s *Service) Assess(ctx context.Context, userID domain.UserID, profileVersion domain.ProfileVersion, schemeIDs []domain.SchemeID) (*Result, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if profileVersion < 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "profile_version cannot be negative")
	}

	profile, err := s.profiles.Get(ctx, userID, profileVersion)
	if err != nil {
		return nil, err
	}
	pinned := profileVersion != 0

	if len(schemeIDs) == 0 {
		schemes, err := s.catalog.ListSchemes(ctx)
		if err != nil {
			return nil, err
		}
		schemeIDs = make([]domain.SchemeID, 0, len(schemes))
		for _, sc := range schemes {
			schemeIDs = append(schemeIDs, sc.ID)
		}
	}

	now := s.now()
	result := &Result{
		UserID:         userID,
		ProfileVersion: profile.Version,
		AssessedAt:     now,
	}

	outcomes := make([]assessmodels.Outcome, 0, len(schemeIDs))
	for _, schemeID := range schemeIDs {
		outcome, err := s.assessOne(ctx, profile, schemeID, now, pinned)
		if err != nil {
			result.Failures = append(result.Failures, SchemeFailure{
				SchemeID: schemeID,
				Reason:   failureReason(err),
			})
			s.logger.WarnContext(ctx, "scheme assessment failed",
				"user_id", userID,
				"scheme_id", schemeID,
				"error", err,
			)
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	if len(outcomes) == 0 && len(result.Failures) == len(schemeIDs) && len(schemeIDs) > 0 {
		return nil, dErrors.New(dErrors.CodeUnavailable, "no scheme could be assessed")
	}

	result.Outcomes = s.ranker.Rank(outcomes, now)
	return result, nil
}

func (s *Service) assessOne(ctx context.Context, profile *profilemodels.Profile, schemeID domain.SchemeID, now time.Time, pinned bool) (assessmodels.Outcome, error) {
	scheme, err := s.catalog.GetScheme(ctx, schemeID)
	if err != nil {
		return assessmodels.Outcome{}, err
	}
	var ruleSet *catalogmodels.RuleSet
	if pinned {
		ruleSet, err = s.catalog.ResolveAt(ctx, schemeID, profile.CreatedAt)
	} else {
		ruleSet, err = s.catalog.Current(ctx, schemeID)
	}
	if err != nil {
		return assessmodels.Outcome{}, err
	}

	start := time.Now()
	outcome, err := s.evaluator.Evaluate(profile.Fields, scheme, ruleSet)
	if err != nil {
		return assessmodels.Outcome{}, err
	}
	s.metrics.ObserveEvaluation(string(outcome.Status), time.Since(start))

	entry := ledger.Entry{
		UserID:         profile.UserID,
		SchemeID:       schemeID,
		ProfileVersion: profile.Version,
		RuleSetVersion: ruleSet.Version,
		Outcome:        outcome,
		ProducedAt:     now,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrStale) {
			// A concurrent reassessment already committed against newer
			// versions. The freshly computed outcome is still the correct
			// answer for this profile version, so serve it without recording.
			s.metrics.IncLedgerStaleReject()
			return outcome, nil
		}
		return assessmodels.Outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record outcome")
	}
	s.metrics.IncLedgerAppend()
	return outcome, nil
}

// History returns the full assessment trail for a (user, scheme) pair,
// oldest first. An empty trail is not an error.
func (s *Service) History(ctx context.Context, userID domain.UserID, schemeID domain.SchemeID) ([]ledger.Entry, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if err := schemeID.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid scheme id")
	}
	entries, err := s.ledger.History(ctx, userID, schemeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load assessment history")
	}
	return entries, nil
}

// Erase removes the user's ledger entries and profile versions. Idempotent:
// erasing an unknown user succeeds. Aggregate counters keep their magnitudes.
func (s *Service) Erase(ctx context.Context, userID domain.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if err := s.ledger.Erase(ctx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to erase ledger entries")
	}
	if err := s.profiles.Erase(ctx, userID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user data erased", "user_id", userID)
	return nil
}

// Totals returns the anonymized aggregate outcome counters.
func (s *Service) Totals(ctx context.Context) (ledger.Totals, error) {
	totals, err := s.ledger.AggregateTotals(ctx)
	if err != nil {
		return ledger.Totals{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load aggregate totals")
	}
	return totals, nil
}

func failureReason(err error) string {
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		return dErr.Message
	}
	return "internal error"
}
