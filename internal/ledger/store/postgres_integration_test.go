//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	assessmodels "suvidha/internal/assess/models"
	"suvidha/internal/ledger"
	"suvidha/internal/ledger/store"
	"suvidha/pkg/domain"
	"suvidha/pkg/platform/sentinel"
	"suvidha/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	ctx      context.Context
	userID   domain.UserID
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresLedgerSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "ledger_entries", "outcome_counters"))
	s.userID = domain.NewUserID()
}

func (s *PostgresLedgerSuite) entry(scheme domain.SchemeID, profileVer, ruleVer int64, status assessmodels.Status) ledger.Entry {
	return ledger.Entry{
		UserID:         s.userID,
		SchemeID:       scheme,
		ProfileVersion: domain.ProfileVersion(profileVer),
		RuleSetVersion: domain.RuleVersion(ruleVer),
		Outcome: assessmodels.Outcome{
			SchemeID:            scheme,
			RuleSetVersion:      domain.RuleVersion(ruleVer),
			Status:              status,
			Confidence:          1,
			MissingRequirements: []string{},
		},
		ProducedAt: time.Now().UTC(),
	}
}

func (s *PostgresLedgerSuite) TestMonotonicGuard() {
	s.Require().NoError(s.store.Append(s.ctx, s.entry("pm-kisan", 2, 3, assessmodels.StatusEligible)))

	err := s.store.Append(s.ctx, s.entry("pm-kisan", 1, 3, assessmodels.StatusEligible))
	s.Require().ErrorIs(err, sentinel.ErrStale)

	err = s.store.Append(s.ctx, s.entry("pm-kisan", 2, 2, assessmodels.StatusEligible))
	s.Require().ErrorIs(err, sentinel.ErrStale)

	s.Require().NoError(s.store.Append(s.ctx, s.entry("pm-kisan", 2, 3, assessmodels.StatusPartial)))
	s.Require().NoError(s.store.Append(s.ctx, s.entry("pm-kisan", 3, 4, assessmodels.StatusEligible)))

	current, err := s.store.Current(s.ctx, s.userID, "pm-kisan")
	s.Require().NoError(err)
	s.Equal(domain.ProfileVersion(3), current.ProfileVersion)
}

func (s *PostgresLedgerSuite) TestProducedAtStrictlyIncreases() {
	stuck := time.Now().UTC().Truncate(time.Second)
	first := s.entry("pm-kisan", 1, 1, assessmodels.StatusEligible)
	first.ProducedAt = stuck
	second := s.entry("pm-kisan", 2, 1, assessmodels.StatusEligible)
	second.ProducedAt = stuck

	s.Require().NoError(s.store.Append(s.ctx, first))
	s.Require().NoError(s.store.Append(s.ctx, second))

	history, err := s.store.History(s.ctx, s.userID, "pm-kisan")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(domain.ProfileVersion(1), history[0].ProfileVersion)
	s.True(history[1].ProducedAt.After(history[0].ProducedAt))
}

func (s *PostgresLedgerSuite) TestOutcomeRoundTrip() {
	deadline := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Microsecond)
	e := s.entry("pm-kisan", 1, 1, assessmodels.StatusPartial)
	e.Outcome.Confidence = 0.5
	e.Outcome.MissingRequirements = []string{"income", "land record"}
	e.Outcome.EstimatedBenefit = 6000
	e.Outcome.Deadline = &deadline

	s.Require().NoError(s.store.Append(s.ctx, e))

	current, err := s.store.Current(s.ctx, s.userID, "pm-kisan")
	s.Require().NoError(err)
	s.Equal(assessmodels.StatusPartial, current.Outcome.Status)
	s.Equal(0.5, current.Outcome.Confidence)
	s.Equal([]string{"income", "land record"}, current.Outcome.MissingRequirements)
	s.Equal(float64(6000), current.Outcome.EstimatedBenefit)
	s.Require().NotNil(current.Outcome.Deadline)
	s.WithinDuration(deadline, *current.Outcome.Deadline, time.Microsecond)
}

func (s *PostgresLedgerSuite) TestFanOutIndexes() {
	other := domain.NewUserID()
	s.Require().NoError(s.store.Append(s.ctx, s.entry("pm-kisan", 1, 1, assessmodels.StatusEligible)))
	s.Require().NoError(s.store.Append(s.ctx, s.entry("scholarship", 1, 1, assessmodels.StatusPartial)))

	e := s.entry("pm-kisan", 1, 1, assessmodels.StatusIneligible)
	e.UserID = other
	s.Require().NoError(s.store.Append(s.ctx, e))

	users, err := s.store.UsersAssessedFor(s.ctx, "pm-kisan")
	s.Require().NoError(err)
	s.Len(users, 2)

	schemes, err := s.store.SchemesAssessed(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Len(schemes, 2)
}

func (s *PostgresLedgerSuite) TestEraseKeepsAggregates() {
	s.Require().NoError(s.store.Append(s.ctx, s.entry("pm-kisan", 1, 1, assessmodels.StatusEligible)))
	s.Require().NoError(s.store.Append(s.ctx, s.entry("scholarship", 1, 1, assessmodels.StatusIneligible)))

	s.Require().NoError(s.store.Erase(s.ctx, s.userID))

	_, err := s.store.Current(s.ctx, s.userID, "pm-kisan")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	totals, err := s.store.AggregateTotals(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), totals.Eligible)
	s.Equal(int64(1), totals.Ineligible)

	// Idempotent.
	s.Require().NoError(s.store.Erase(s.ctx, s.userID))
}
