package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"suvidha/internal/assess"
	"suvidha/internal/assess/models"
	catalogmodels "suvidha/internal/catalog/models"
	ledgerstore "suvidha/internal/ledger/store"
	profilemodels "suvidha/internal/profile/models"
	"suvidha/internal/rules"
	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
)

type stubCatalog struct {
	schemes  map[domain.SchemeID]*catalogmodels.Scheme
	ruleSets map[domain.SchemeID]*catalogmodels.RuleSet
	// historical, when set, is what ResolveAt serves instead of the current set.
	historical map[domain.SchemeID]*catalogmodels.RuleSet
}

func (c *stubCatalog) GetScheme(ctx context.Context, id domain.SchemeID) (*catalogmodels.Scheme, error) {
	if sc, ok := c.schemes[id]; ok {
		return sc, nil
	}
	return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown scheme %s", id)
}

func (c *stubCatalog) ListSchemes(ctx context.Context) ([]*catalogmodels.Scheme, error) {
	out := make([]*catalogmodels.Scheme, 0, len(c.schemes))
	for _, sc := range c.schemes {
		out = append(out, sc)
	}
	return out, nil
}

func (c *stubCatalog) Current(ctx context.Context, schemeID domain.SchemeID) (*catalogmodels.RuleSet, error) {
	if rs, ok := c.ruleSets[schemeID]; ok {
		return rs, nil
	}
	return nil, dErrors.Newf(dErrors.CodeNotFound, "scheme %s has no published rule set", schemeID)
}

func (c *stubCatalog) ResolveAt(ctx context.Context, schemeID domain.SchemeID, at time.Time) (*catalogmodels.RuleSet, error) {
	if rs, ok := c.historical[schemeID]; ok {
		return rs, nil
	}
	return c.Current(ctx, schemeID)
}

type stubProfiles struct {
	profile *profilemodels.Profile
	old     *profilemodels.Profile
	erased  []domain.UserID
}

func (p *stubProfiles) Get(ctx context.Context, userID domain.UserID, version domain.ProfileVersion) (*profilemodels.Profile, error) {
	if p.profile == nil || p.profile.UserID != userID {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no profile for user %s", userID)
	}
	switch {
	case version == 0 || version == p.profile.Version:
		return p.profile, nil
	case p.old != nil && version == p.old.Version:
		return p.old, nil
	default:
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no profile version %d for user %s", version, userID)
	}
}

func (p *stubProfiles) Erase(ctx context.Context, userID domain.UserID) error {
	p.erased = append(p.erased, userID)
	return nil
}

type AssessServiceSuite struct {
	suite.Suite
	ctx      context.Context
	userID   domain.UserID
	catalog  *stubCatalog
	profiles *stubProfiles
	ledger   *ledgerstore.InMemory
	svc      *Service
}

func TestAssessServiceSuite(t *testing.T) {
	suite.Run(t, new(AssessServiceSuite))
}

func f(v float64) *float64 { return &v }

func (s *AssessServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.userID = domain.NewUserID()

	s.catalog = &stubCatalog{
		schemes:  make(map[domain.SchemeID]*catalogmodels.Scheme),
		ruleSets: make(map[domain.SchemeID]*catalogmodels.RuleSet),
	}
	s.addScheme("pm-kisan", 6000, "occupation", []string{"farmer"})
	s.addScheme("scholarship", 12000, "occupation", []string{"student"})

	s.profiles = &stubProfiles{
		profile: &profilemodels.Profile{
			UserID:  s.userID,
			Version: 2,
			Fields: domain.Fields{
				"age":        domain.Number(35),
				"occupation": domain.String("farmer"),
				"income":     domain.Number(200000),
			},
		},
	}
	s.ledger = ledgerstore.NewInMemory()
	s.svc = New(s.catalog, s.profiles, s.ledger, assess.NewEvaluator(nil))
}

func (s *AssessServiceSuite) addScheme(id domain.SchemeID, benefit float64, field string, allowed []string) {
	s.catalog.schemes[id] = &catalogmodels.Scheme{
		ID:      id,
		Name:    string(id),
		Benefit: catalogmodels.Benefit{Type: "cash", Amount: benefit},
	}
	s.catalog.ruleSets[id] = &catalogmodels.RuleSet{
		SchemeID: id,
		Version:  1,
		Criteria: []rules.Criterion{
			{Field: "age", Kind: rules.KindRange, Min: f(18)},
			{Field: field, Kind: rules.KindSet, Allowed: allowed},
		},
	}
}

func (s *AssessServiceSuite) TestAssessRecordsAndRanks() {
	result, err := s.svc.Assess(s.ctx, s.userID, 0, nil)
	s.Require().NoError(err)

	s.Equal(domain.ProfileVersion(2), result.ProfileVersion)
	s.Require().Len(result.Outcomes, 2)
	// Eligible pm-kisan outranks the ineligible scholarship.
	s.Equal(domain.SchemeID("pm-kisan"), result.Outcomes[0].SchemeID)
	s.Equal(models.StatusEligible, result.Outcomes[0].Status)
	s.Equal(models.StatusIneligible, result.Outcomes[1].Status)
	s.Empty(result.Failures)

	entry, err := s.ledger.Current(s.ctx, s.userID, "pm-kisan")
	s.Require().NoError(err)
	s.Equal(domain.ProfileVersion(2), entry.ProfileVersion)
	s.Equal(domain.RuleVersion(1), entry.RuleSetVersion)
}

func (s *AssessServiceSuite) TestPinnedProfileVersionReplays() {
	// Record the latest profile first so the ledger sits at version 2.
	_, err := s.svc.Assess(s.ctx, s.userID, 0, []domain.SchemeID{"pm-kisan"})
	s.Require().NoError(err)

	// Version 1 predates the occupation requirement; its replay resolves the
	// rule set that was effective when the snapshot was captured.
	s.profiles.old = &profilemodels.Profile{
		UserID:  s.userID,
		Version: 1,
		Fields:  domain.Fields{"age": domain.Number(35)},
	}
	s.catalog.historical = map[domain.SchemeID]*catalogmodels.RuleSet{
		"pm-kisan": {
			SchemeID: "pm-kisan",
			Version:  1,
			Criteria: []rules.Criterion{{Field: "age", Kind: rules.KindRange, Min: f(18)}},
		},
	}

	result, err := s.svc.Assess(s.ctx, s.userID, 1, []domain.SchemeID{"pm-kisan"})
	s.Require().NoError(err)
	s.Equal(domain.ProfileVersion(1), result.ProfileVersion)
	s.Require().Len(result.Outcomes, 1)
	s.Equal(models.StatusEligible, result.Outcomes[0].Status)

	// The replay is served but never recorded over the newer entry.
	entry, err := s.ledger.Current(s.ctx, s.userID, "pm-kisan")
	s.Require().NoError(err)
	s.Equal(domain.ProfileVersion(2), entry.ProfileVersion)

	_, err = s.svc.Assess(s.ctx, s.userID, 9, []domain.SchemeID{"pm-kisan"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *AssessServiceSuite) TestPartialFailureIsolation() {
	result, err := s.svc.Assess(s.ctx, s.userID, 0, []domain.SchemeID{"pm-kisan", "no-such-scheme"})
	s.Require().NoError(err)

	s.Require().Len(result.Outcomes, 1)
	s.Equal(domain.SchemeID("pm-kisan"), result.Outcomes[0].SchemeID)
	s.Require().Len(result.Failures, 1)
	s.Equal(domain.SchemeID("no-such-scheme"), result.Failures[0].SchemeID)
	s.Contains(result.Failures[0].Reason, "unknown scheme")
}

func (s *AssessServiceSuite) TestAllSchemesFailing() {
	_, err := s.svc.Assess(s.ctx, s.userID, 0, []domain.SchemeID{"ghost-one", "ghost-two"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *AssessServiceSuite) TestUnknownUser() {
	_, err := s.svc.Assess(s.ctx, domain.NewUserID(), 0, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *AssessServiceSuite) TestHistoryAfterRepeatAssessments() {
	_, err := s.svc.Assess(s.ctx, s.userID, 0, []domain.SchemeID{"pm-kisan"})
	s.Require().NoError(err)
	s.profiles.profile.Version = 3
	_, err = s.svc.Assess(s.ctx, s.userID, 0, []domain.SchemeID{"pm-kisan"})
	s.Require().NoError(err)

	entries, err := s.svc.History(s.ctx, s.userID, "pm-kisan")
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(domain.ProfileVersion(2), entries[0].ProfileVersion)
	s.Equal(domain.ProfileVersion(3), entries[1].ProfileVersion)
	s.True(entries[1].ProducedAt.After(entries[0].ProducedAt))
}

func (s *AssessServiceSuite) TestEraseRemovesLedgerAndProfiles() {
	_, err := s.svc.Assess(s.ctx, s.userID, 0, nil)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Erase(s.ctx, s.userID))

	entries, err := s.svc.History(s.ctx, s.userID, "pm-kisan")
	s.Require().NoError(err)
	s.Empty(entries)
	s.Equal([]domain.UserID{s.userID}, s.profiles.erased)

	totals, err := s.svc.Totals(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), totals.Eligible)
	s.Equal(int64(1), totals.Ineligible)
}
