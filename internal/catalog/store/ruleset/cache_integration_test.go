//go:build integration

package ruleset_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"suvidha/internal/catalog/store/ruleset"
	"suvidha/internal/rules"
	"suvidha/pkg/domain"
	"suvidha/pkg/testutil/containers"
)

type CurrentCacheSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	backing *ruleset.InMemory
	cache   *ruleset.CurrentCache
	ctx     context.Context
}

func TestCurrentCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CurrentCacheSuite))
}

func (s *CurrentCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.ctx = context.Background()
}

func (s *CurrentCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.backing = ruleset.NewInMemory()
	s.cache = ruleset.NewCurrentCache(s.backing, s.redis.Client, time.Minute, slog.Default())
}

func maxIncome(v float64) []rules.Criterion {
	return []rules.Criterion{{Field: "income", Kind: rules.KindRange, Max: &v}}
}

func (s *CurrentCacheSuite) TestCurrentIsCachedAndInvalidatedOnPublish() {
	const scheme = domain.SchemeID("pm-kisan")
	base := time.Now().UTC().Add(-time.Hour)

	_, err := s.cache.Publish(s.ctx, scheme, maxIncome(250000), base)
	s.Require().NoError(err)

	// First read populates the cache.
	rs, err := s.cache.Current(s.ctx, scheme)
	s.Require().NoError(err)
	s.Equal(domain.RuleVersion(1), rs.Version)

	keys, err := s.redis.Client.Keys(s.ctx, "suvidha:ruleset:current:*").Result()
	s.Require().NoError(err)
	s.Len(keys, 1)

	// Publish through the cache invalidates, so the next read sees v2.
	_, err = s.cache.Publish(s.ctx, scheme, maxIncome(300000), base.Add(time.Minute))
	s.Require().NoError(err)

	rs, err = s.cache.Current(s.ctx, scheme)
	s.Require().NoError(err)
	s.Equal(domain.RuleVersion(2), rs.Version)
}

func (s *CurrentCacheSuite) TestStalenessIsBoundedByKeyLifetime() {
	const scheme = domain.SchemeID("pm-kisan")
	base := time.Now().UTC().Add(-time.Hour)

	_, err := s.backing.Publish(s.ctx, scheme, maxIncome(250000), base)
	s.Require().NoError(err)

	rs, err := s.cache.Current(s.ctx, scheme)
	s.Require().NoError(err)
	s.Equal(domain.RuleVersion(1), rs.Version)

	// A publish that bypasses the cache leaves the old version cached; readers
	// may see it until the key expires or is invalidated.
	_, err = s.backing.Publish(s.ctx, scheme, maxIncome(300000), time.Now().UTC().Add(-time.Second))
	s.Require().NoError(err)

	rs, err = s.cache.Current(s.ctx, scheme)
	s.Require().NoError(err)
	s.Equal(domain.RuleVersion(1), rs.Version)

	// Dropping the key restores freshness on the next read.
	s.Require().NoError(s.redis.Client.Del(s.ctx, "suvidha:ruleset:current:pm-kisan").Err())
	rs, err = s.cache.Current(s.ctx, scheme)
	s.Require().NoError(err)
	s.Equal(domain.RuleVersion(2), rs.Version)
}
