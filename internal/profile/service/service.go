// Package service manages versioned profile snapshots and fans profile
// updates out to the reassessment coordinator.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"suvidha/internal/profile/models"
	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
	"suvidha/pkg/platform/sentinel"
)

// Store is the versioned profile snapshot store.
type Store interface {
	Put(ctx context.Context, userID domain.UserID, fields domain.Fields, now time.Time) (*models.Profile, error)
	Get(ctx context.Context, userID domain.UserID, version domain.ProfileVersion) (*models.Profile, error)
	Latest(ctx context.Context, userID domain.UserID) (*models.Profile, error)
	Erase(ctx context.Context, userID domain.UserID) error
}

// UpdateSink receives profile update notifications.
type UpdateSink interface {
	ProfileUpdated(ctx context.Context, userID domain.UserID, version domain.ProfileVersion, fullRefresh bool) error
}

type Service struct {
	store  Store
	sink   UpdateSink
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithUpdateSink(sink UpdateSink) Option {
	return func(s *Service) { s.sink = sink }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put creates the next immutable profile version for the user. fullRefresh
// asks the coordinator to reassess the entire catalog rather than only the
// schemes the user was previously assessed for.
func (s *Service) Put(ctx context.Context, userID domain.UserID, fields domain.Fields, fullRefresh bool) (*models.Profile, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if err := models.ValidateFields(fields); err != nil {
		return nil, err
	}

	p, err := s.store.Put(ctx, userID, fields, time.Now().UTC())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store profile version")
	}

	s.logger.InfoContext(ctx, "profile version created",
		"user_id", userID,
		"version", p.Version,
	)

	if s.sink != nil {
		if err := s.sink.ProfileUpdated(ctx, userID, p.Version, fullRefresh); err != nil {
			s.logger.ErrorContext(ctx, "failed to enqueue reassessment for profile update",
				"user_id", userID,
				"version", p.Version,
				"error", err,
			)
		}
	}
	return p, nil
}

// Get returns the requested version, or the latest when version is zero.
func (s *Service) Get(ctx context.Context, userID domain.UserID, version domain.ProfileVersion) (*models.Profile, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	var (
		p   *models.Profile
		err error
	)
	if version == 0 {
		p, err = s.store.Latest(ctx, userID)
	} else {
		p, err = s.store.Get(ctx, userID, version)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no profile for user %s", userID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return p, nil
}

// Erase removes every profile version for the user. Idempotent.
func (s *Service) Erase(ctx context.Context, userID domain.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if err := s.store.Erase(ctx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to erase profiles")
	}
	return nil
}
