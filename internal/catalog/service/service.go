// Package service orchestrates catalog maintenance: scheme registration and
// rule-set publication. Publication is the single write path for rule
// changes and fans out to the reassessment coordinator.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"suvidha/internal/catalog/models"
	"suvidha/internal/catalog/ports"
	"suvidha/internal/platform/metrics"
	"suvidha/internal/rules"
	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
	"suvidha/pkg/platform/sentinel"
	pstrings "suvidha/pkg/platform/strings"
)

type Service struct {
	schemes  ports.SchemeStore
	ruleSets ports.RuleSetStore
	sink     ports.PublishSink
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublishSink(sink ports.PublishSink) Option {
	return func(s *Service) { s.sink = sink }
}

func New(schemes ports.SchemeStore, ruleSets ports.RuleSetStore, opts ...Option) *Service {
	s := &Service{
		schemes:  schemes,
		ruleSets: ruleSets,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) RegisterScheme(ctx context.Context, id domain.SchemeID, name string, benefit models.Benefit, deadline *time.Time) (*models.Scheme, error) {
	scheme, err := models.NewScheme(id, name, benefit, deadline, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.schemes.Create(ctx, scheme); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "scheme %s already exists", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create scheme")
	}
	return scheme, nil
}

func (s *Service) GetScheme(ctx context.Context, id domain.SchemeID) (*models.Scheme, error) {
	scheme, err := s.schemes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown scheme %s", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load scheme")
	}
	return scheme, nil
}

func (s *Service) ListSchemes(ctx context.Context) ([]*models.Scheme, error) {
	schemes, err := s.schemes.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list schemes")
	}
	return schemes, nil
}

// PublishRuleSet validates and publishes the next rule-set version for a
// scheme, then notifies the reassessment sink. An overlap is a conflict the
// catalog maintainer must resolve; it is never silently reordered.
func (s *Service) PublishRuleSet(ctx context.Context, schemeID domain.SchemeID, criteria []rules.Criterion, effectiveFrom time.Time) (*models.RuleSet, error) {
	if _, err := s.GetScheme(ctx, schemeID); err != nil {
		return nil, err
	}
	for i := range criteria {
		if criteria[i].Kind == rules.KindSet {
			criteria[i].Allowed = pstrings.DedupeAndTrimLower(criteria[i].Allowed)
		}
	}
	if err := models.ValidateCriteria(criteria); err != nil {
		return nil, err
	}
	if effectiveFrom.IsZero() {
		effectiveFrom = time.Now().UTC()
	}

	rs, err := s.ruleSets.Publish(ctx, schemeID, criteria, effectiveFrom)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict,
				"rule set for %s would overlap the current version", schemeID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to publish rule set")
	}

	s.metrics.IncRuleSetPublish()
	s.logger.InfoContext(ctx, "rule set published",
		"scheme_id", schemeID,
		"version", rs.Version,
		"effective_from", rs.EffectiveFrom,
	)

	if s.sink != nil {
		if err := s.sink.RulePublished(ctx, schemeID, rs.Version); err != nil {
			// The publish itself committed; reassessment will catch up on the
			// next publication or can be requeued by operations.
			s.logger.ErrorContext(ctx, "failed to enqueue reassessment for rule publish",
				"scheme_id", schemeID,
				"version", rs.Version,
				"error", err,
			)
		}
	}
	return rs, nil
}

// ResolveAt returns the rule-set version effective at the given time.
func (s *Service) ResolveAt(ctx context.Context, schemeID domain.SchemeID, at time.Time) (*models.RuleSet, error) {
	rs, err := s.ruleSets.Resolve(ctx, schemeID, at)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound,
				"scheme %s has no rule set effective at %s", schemeID, at.Format(time.RFC3339))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve rule set")
	}
	return rs, nil
}

// Current returns the currently effective rule-set version.
func (s *Service) Current(ctx context.Context, schemeID domain.SchemeID) (*models.RuleSet, error) {
	rs, err := s.ruleSets.Current(ctx, schemeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "scheme %s has no published rule set", schemeID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load current rule set")
	}
	return rs, nil
}

// History returns all rule-set versions for a scheme, oldest first.
func (s *Service) History(ctx context.Context, schemeID domain.SchemeID) ([]*models.RuleSet, error) {
	if _, err := s.GetScheme(ctx, schemeID); err != nil {
		return nil, err
	}
	history, err := s.ruleSets.History(ctx, schemeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rule set history")
	}
	return history, nil
}
