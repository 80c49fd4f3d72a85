package reassess

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"suvidha/internal/assess"
	assessmodels "suvidha/internal/assess/models"
	"suvidha/internal/catalog/models"
	rulesetstore "suvidha/internal/catalog/store/ruleset"
	schemestore "suvidha/internal/catalog/store/scheme"
	"suvidha/internal/ledger"
	ledgerstore "suvidha/internal/ledger/store"
	profilemodels "suvidha/internal/profile/models"
	profilestore "suvidha/internal/profile/store"
	"suvidha/internal/rules"
	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
)

// countingProfiles wraps the profile store and counts Latest calls, which
// corresponds one-to-one with reassessment attempts.
type countingProfiles struct {
	inner *profilestore.InMemory
	mu    sync.Mutex
	calls int
}

func (p *countingProfiles) Latest(ctx context.Context, userID domain.UserID) (*profilemodels.Profile, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.inner.Latest(ctx, userID)
}

func (p *countingProfiles) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// flakyLedger fails the first failures appends with a transient error.
type flakyLedger struct {
	ledger.Store
	mu       sync.Mutex
	failures int
}

func (l *flakyLedger) Append(ctx context.Context, entry ledger.Entry) error {
	l.mu.Lock()
	shouldFail := l.failures > 0
	if shouldFail {
		l.failures--
	}
	l.mu.Unlock()
	if shouldFail {
		return errors.New("connection reset")
	}
	return l.Store.Append(ctx, entry)
}

type CoordinatorSuite struct {
	suite.Suite
	ctx      context.Context
	cancel   context.CancelFunc
	schemes  *schemestore.InMemory
	ruleSets *rulesetstore.InMemory
	profiles *countingProfiles
	ledger   *flakyLedger
	coord    *Coordinator
	done     chan struct{}
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.schemes = schemestore.NewInMemory()
	s.ruleSets = rulesetstore.NewInMemory()
	s.profiles = &countingProfiles{inner: profilestore.NewInMemory()}
	s.ledger = &flakyLedger{Store: ledgerstore.NewInMemory()}

	s.coord = New(s.schemes, s.ruleSets, s.profiles, s.ledger, assess.NewEvaluator(nil), Config{
		Workers:     4,
		QueueDepth:  16,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	})
	s.coord.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		_ = s.coord.Run(s.ctx)
	}()
}

func (s *CoordinatorSuite) TearDownTest() {
	s.cancel()
	<-s.done
}

func (s *CoordinatorSuite) registerScheme(id domain.SchemeID, maxIncome float64) {
	scheme, err := models.NewScheme(id, string(id), models.Benefit{Type: "cash", Amount: 1000}, nil, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.schemes.Create(s.ctx, scheme))
	_, err = s.ruleSets.Publish(s.ctx, id, []rules.Criterion{
		{Field: "income", Kind: rules.KindRange, Max: &maxIncome},
	}, time.Now().UTC().Add(-time.Hour))
	s.Require().NoError(err)
}

func (s *CoordinatorSuite) seedUser(income float64, schemes ...domain.SchemeID) domain.UserID {
	p, err := s.profiles.inner.Put(s.ctx, domain.NewUserID(), domain.Fields{"income": domain.Number(income)}, time.Now().UTC())
	s.Require().NoError(err)
	for _, id := range schemes {
		s.Require().NoError(s.ledger.Store.Append(s.ctx, ledger.Entry{
			UserID:         p.UserID,
			SchemeID:       id,
			ProfileVersion: p.Version,
			RuleSetVersion: 1,
			Outcome:        assessmodels.Outcome{SchemeID: id, RuleSetVersion: 1, Status: assessmodels.StatusEligible},
			ProducedAt:     time.Now().UTC(),
		}))
	}
	return p.UserID
}

func (s *CoordinatorSuite) currentEntry(userID domain.UserID, schemeID domain.SchemeID) *ledger.Entry {
	entry, err := s.ledger.Store.Current(s.ctx, userID, schemeID)
	s.Require().NoError(err)
	return entry
}

func (s *CoordinatorSuite) TestRulePublicationFansOut() {
	s.registerScheme("pm-kisan", 250000)
	rich := s.seedUser(400000, "pm-kisan")
	poor := s.seedUser(100000, "pm-kisan")

	_, err := s.ruleSets.Publish(s.ctx, "pm-kisan", []rules.Criterion{
		{Field: "income", Kind: rules.KindRange, Max: f64(300000)},
	}, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.coord.RulePublished(s.ctx, "pm-kisan", 2))

	s.Eventually(func() bool {
		return s.currentEntry(rich, "pm-kisan").RuleSetVersion == 2 &&
			s.currentEntry(poor, "pm-kisan").RuleSetVersion == 2
	}, 5*time.Second, 10*time.Millisecond)

	// The raised income cap flips the rich user to eligible under v2.
	s.Equal(assessmodels.StatusEligible, s.currentEntry(rich, "pm-kisan").Outcome.Status)

	history, err := s.ledger.Store.History(s.ctx, rich, "pm-kisan")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.True(history[1].ProducedAt.After(history[0].ProducedAt))
}

func (s *CoordinatorSuite) TestProfileUpdateReassessesAssessedSchemes() {
	s.registerScheme("pm-kisan", 250000)
	s.registerScheme("scholarship", 100000)
	userID := s.seedUser(50000, "pm-kisan", "scholarship")

	p, err := s.profiles.inner.Put(s.ctx, userID, domain.Fields{"income": domain.Number(150000)}, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.coord.ProfileUpdated(s.ctx, userID, p.Version, false))

	s.Eventually(func() bool {
		return s.currentEntry(userID, "pm-kisan").ProfileVersion == 2 &&
			s.currentEntry(userID, "scholarship").ProfileVersion == 2
	}, 5*time.Second, 10*time.Millisecond)

	s.Equal(assessmodels.StatusEligible, s.currentEntry(userID, "pm-kisan").Outcome.Status)
	s.Equal(assessmodels.StatusIneligible, s.currentEntry(userID, "scholarship").Outcome.Status)
}

func (s *CoordinatorSuite) TestTransientFailuresAreRetried() {
	s.registerScheme("pm-kisan", 250000)
	userID := s.seedUser(50000, "pm-kisan")
	s.ledger.failures = 2

	p, err := s.profiles.inner.Put(s.ctx, userID, domain.Fields{"income": domain.Number(60000)}, time.Now().UTC())
	s.Require().NoError(err)

	before := s.profiles.callCount()
	s.Require().NoError(s.coord.ProfileUpdated(s.ctx, userID, p.Version, false))

	s.Eventually(func() bool {
		return s.currentEntry(userID, "pm-kisan").ProfileVersion == 2
	}, 5*time.Second, 10*time.Millisecond)

	// Two failed attempts plus the successful third.
	s.Equal(before+3, s.profiles.callCount())
}

func (s *CoordinatorSuite) TestIntegrityErrorsAreNotRetried() {
	s.registerScheme("pm-kisan", 250000)
	userID := s.seedUser(50000, "pm-kisan")

	// Profile version 2 carries a mistyped income field.
	p, err := s.profiles.inner.Put(s.ctx, userID, domain.Fields{"income": domain.String("lots")}, time.Now().UTC())
	s.Require().NoError(err)

	before := s.profiles.callCount()
	s.Require().NoError(s.coord.ProfileUpdated(s.ctx, userID, p.Version, false))

	s.Eventually(func() bool {
		return s.profiles.callCount() == before+1
	}, 5*time.Second, 10*time.Millisecond)

	// Give the coordinator a beat to prove it does not retry.
	time.Sleep(50 * time.Millisecond)
	s.Equal(before+1, s.profiles.callCount())
	s.Equal(domain.ProfileVersion(1), s.currentEntry(userID, "pm-kisan").ProfileVersion)
}

func (s *CoordinatorSuite) TestErasedProfileIsSkipped() {
	s.registerScheme("pm-kisan", 250000)
	kept := s.seedUser(50000, "pm-kisan")
	erased := s.seedUser(60000, "pm-kisan")
	// Profile gone, stale ledger entry still present: the pair is skipped
	// without failing the rest of the fan-out.
	s.Require().NoError(s.profiles.inner.Erase(s.ctx, erased))

	_, err := s.ruleSets.Publish(s.ctx, "pm-kisan", []rules.Criterion{
		{Field: "income", Kind: rules.KindRange, Max: f64(80000)},
	}, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.coord.RulePublished(s.ctx, "pm-kisan", 2))

	s.Eventually(func() bool {
		return s.currentEntry(kept, "pm-kisan").RuleSetVersion == 2
	}, 5*time.Second, 10*time.Millisecond)
	s.Equal(domain.RuleVersion(1), s.currentEntry(erased, "pm-kisan").RuleSetVersion)
}

func (s *CoordinatorSuite) TestFullQueueRejectsEnqueue() {
	// A coordinator that is never run: the queue only fills.
	idle := New(s.schemes, s.ruleSets, s.profiles, s.ledger, assess.NewEvaluator(nil), Config{QueueDepth: 1})

	s.Require().NoError(idle.RulePublished(s.ctx, "pm-kisan", 1))
	err := idle.RulePublished(s.ctx, "pm-kisan", 2)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func f64(v float64) *float64 { return &v }
