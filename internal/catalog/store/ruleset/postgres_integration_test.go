//go:build integration

package ruleset_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"suvidha/internal/catalog/models"
	"suvidha/internal/catalog/store/ruleset"
	"suvidha/internal/catalog/store/scheme"
	"suvidha/internal/rules"
	"suvidha/pkg/domain"
	"suvidha/pkg/platform/sentinel"
	"suvidha/pkg/testutil/containers"
)

type PostgresRuleSetSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	schemes  *scheme.Postgres
	store    *ruleset.Postgres
	ctx      context.Context
}

func TestPostgresRuleSetSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRuleSetSuite))
}

func (s *PostgresRuleSetSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.schemes = scheme.NewPostgres(s.postgres.DB)
	s.store = ruleset.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresRuleSetSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "rule_sets", "schemes"))
}

func (s *PostgresRuleSetSuite) createScheme(id domain.SchemeID) {
	sc, err := models.NewScheme(id, string(id), models.Benefit{Type: "cash", Amount: 1000}, nil, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.schemes.Create(s.ctx, sc))
}

func criteria(maxIncome float64) []rules.Criterion {
	return []rules.Criterion{{Field: "income", Kind: rules.KindRange, Max: &maxIncome}}
}

func (s *PostgresRuleSetSuite) TestPublishChain() {
	s.createScheme("pm-kisan")
	base := time.Now().UTC().Add(-time.Hour)

	first, err := s.store.Publish(s.ctx, "pm-kisan", criteria(250000), base)
	s.Require().NoError(err)
	s.Equal(domain.RuleVersion(1), first.Version)

	second, err := s.store.Publish(s.ctx, "pm-kisan", criteria(300000), base.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(domain.RuleVersion(2), second.Version)
	s.Equal(domain.RuleVersion(1), second.Supersedes)

	history, err := s.store.History(s.ctx, "pm-kisan")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Require().NotNil(history[0].EffectiveUntil)
	s.WithinDuration(base.Add(time.Minute), *history[0].EffectiveUntil, time.Millisecond)
	s.Nil(history[1].EffectiveUntil)

	// Criteria survive the JSONB round trip.
	s.Require().Len(history[1].Criteria, 1)
	s.Equal("income", history[1].Criteria[0].Field)
	s.Require().NotNil(history[1].Criteria[0].Max)
	s.Equal(float64(300000), *history[1].Criteria[0].Max)
}

func (s *PostgresRuleSetSuite) TestPublishConflict() {
	s.createScheme("pm-kisan")
	base := time.Now().UTC().Add(-time.Hour)

	_, err := s.store.Publish(s.ctx, "pm-kisan", criteria(250000), base)
	s.Require().NoError(err)

	_, err = s.store.Publish(s.ctx, "pm-kisan", criteria(300000), base)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresRuleSetSuite) TestResolveAt() {
	s.createScheme("pm-kisan")
	base := time.Now().UTC().Add(-2 * time.Hour)
	cutover := base.Add(time.Hour)

	_, err := s.store.Publish(s.ctx, "pm-kisan", criteria(250000), base)
	s.Require().NoError(err)
	_, err = s.store.Publish(s.ctx, "pm-kisan", criteria(300000), cutover)
	s.Require().NoError(err)

	rs, err := s.store.Resolve(s.ctx, "pm-kisan", base.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(domain.RuleVersion(1), rs.Version)

	rs, err = s.store.Current(s.ctx, "pm-kisan")
	s.Require().NoError(err)
	s.Equal(domain.RuleVersion(2), rs.Version)

	_, err = s.store.Resolve(s.ctx, "pm-kisan", base.Add(-time.Minute))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentPublishes verifies the FOR UPDATE lock serializes publishes:
// every attempt either wins a version number or reports a conflict, and the
// surviving chain has no gaps or overlaps.
func (s *PostgresRuleSetSuite) TestConcurrentPublishes() {
	s.createScheme("pm-kisan")
	base := time.Now().UTC().Add(-time.Hour)
	const attempts = 10

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.store.Publish(s.ctx, "pm-kisan", criteria(float64(i)), base.Add(time.Duration(i)*time.Second))
			if err != nil {
				s.ErrorIs(err, sentinel.ErrConflict)
			}
		}(i)
	}
	wg.Wait()

	history, err := s.store.History(s.ctx, "pm-kisan")
	s.Require().NoError(err)
	s.Require().NotEmpty(history)
	for i, rs := range history {
		s.Equal(domain.RuleVersion(i+1), rs.Version)
		if i < len(history)-1 {
			s.Require().NotNil(rs.EffectiveUntil)
			s.WithinDuration(history[i+1].EffectiveFrom, *rs.EffectiveUntil, time.Microsecond)
		} else {
			s.Nil(rs.EffectiveUntil)
		}
	}
}
