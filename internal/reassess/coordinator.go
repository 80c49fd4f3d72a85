// Package reassess keeps the ledger consistent with the latest rules and
// profiles. Rule publications and profile updates enqueue tasks; the
// coordinator fans each task out to (user, scheme) pairs and re-evaluates
// them with bounded concurrency, retrying transient failures.
package reassess

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"suvidha/internal/assess"
	"suvidha/internal/catalog/ports"
	"suvidha/internal/ledger"
	"suvidha/internal/platform/metrics"
	profilemodels "suvidha/internal/profile/models"
	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
	"suvidha/pkg/platform/sentinel"
)

type taskKind int

const (
	taskRulePublished taskKind = iota
	taskProfileUpdated
)

type task struct {
	kind taskKind

	schemeID    domain.SchemeID
	ruleVersion domain.RuleVersion

	userID         domain.UserID
	profileVersion domain.ProfileVersion
	fullRefresh    bool
}

// Profiles is the slice of the profile store the coordinator needs.
type Profiles interface {
	Latest(ctx context.Context, userID domain.UserID) (*profilemodels.Profile, error)
}

// Config bounds the coordinator.
type Config struct {
	Workers     int
	QueueDepth  int
	MaxAttempts int
	BackoffBase time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 256
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 100 * time.Millisecond
	}
	return c
}

// Coordinator consumes publication and profile-update events and drives the
// resulting re-evaluations. It implements the catalog publish sink and the
// profile update sink; Run must be started before events are delivered.
type Coordinator struct {
	schemes   ports.SchemeStore
	ruleSets  ports.RuleSetStore
	profiles  Profiles
	ledger    ledger.Store
	evaluator *assess.Evaluator

	cfg     Config
	queue   chan task
	metrics *metrics.Metrics
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func New(schemes ports.SchemeStore, ruleSets ports.RuleSetStore, profiles Profiles, store ledger.Store, evaluator *assess.Evaluator, cfg Config, opts ...Option) *Coordinator {
	cfg = cfg.withDefaults()
	c := &Coordinator{
		schemes:   schemes,
		ruleSets:  ruleSets,
		profiles:  profiles,
		ledger:    store,
		evaluator: evaluator,
		cfg:       cfg,
		queue:     make(chan task, cfg.QueueDepth),
		logger:    slog.Default(),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RulePublished enqueues reassessment of every user previously assessed for
// the scheme. Returns an error when the queue is full rather than blocking
// the publish path.
func (c *Coordinator) RulePublished(ctx context.Context, schemeID domain.SchemeID, version domain.RuleVersion) error {
	return c.enqueue(ctx, task{kind: taskRulePublished, schemeID: schemeID, ruleVersion: version})
}

// ProfileUpdated enqueues reassessment of the user's previously assessed
// schemes, or the full catalog when fullRefresh is set.
func (c *Coordinator) ProfileUpdated(ctx context.Context, userID domain.UserID, version domain.ProfileVersion, fullRefresh bool) error {
	return c.enqueue(ctx, task{
		kind:           taskProfileUpdated,
		userID:         userID,
		profileVersion: version,
		fullRefresh:    fullRefresh,
	})
}

func (c *Coordinator) enqueue(ctx context.Context, t task) error {
	select {
	case c.queue <- t:
		c.metrics.SetReassessQueueDepth(len(c.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return dErrors.New(dErrors.CodeUnavailable, "reassessment queue is full")
	}
}

// Run consumes tasks until the context is canceled. One task at a time; the
// pairs within a task run on a bounded worker group so a wide fan-out cannot
// starve the rest of the process.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-c.queue:
			c.metrics.SetReassessQueueDepth(len(c.queue))
			if err := c.process(ctx, t); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				c.logger.ErrorContext(ctx, "reassessment task failed",
					"error", err,
				)
			}
		}
	}
}

func (c *Coordinator) process(ctx context.Context, t task) error {
	pairs, err := c.expand(ctx, t)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, p := range pairs {
		p := p
		g.Go(func() error {
			// Pair failures are isolated: log and count, never abort siblings.
			if err := c.reassessPair(ctx, p.user, p.scheme); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				c.metrics.IncReassessFailure()
				c.logger.ErrorContext(ctx, "pair reassessment failed",
					"user_id", p.user,
					"scheme_id", p.scheme,
					"error", err,
				)
			}
			return nil
		})
	}
	return g.Wait()
}

type pair struct {
	user   domain.UserID
	scheme domain.SchemeID
}

func (c *Coordinator) expand(ctx context.Context, t task) ([]pair, error) {
	switch t.kind {
	case taskRulePublished:
		users, err := c.ledger.UsersAssessedFor(ctx, t.schemeID)
		if err != nil {
			return nil, err
		}
		pairs := make([]pair, 0, len(users))
		for _, u := range users {
			pairs = append(pairs, pair{user: u, scheme: t.schemeID})
		}
		c.logger.InfoContext(ctx, "rule publication fan-out",
			"scheme_id", t.schemeID,
			"version", t.ruleVersion,
			"users", len(users),
		)
		return pairs, nil

	case taskProfileUpdated:
		var schemeIDs []domain.SchemeID
		if t.fullRefresh {
			schemes, err := c.schemes.List(ctx)
			if err != nil {
				return nil, err
			}
			for _, sc := range schemes {
				schemeIDs = append(schemeIDs, sc.ID)
			}
		} else {
			var err error
			schemeIDs, err = c.ledger.SchemesAssessed(ctx, t.userID)
			if err != nil {
				return nil, err
			}
		}
		pairs := make([]pair, 0, len(schemeIDs))
		for _, id := range schemeIDs {
			pairs = append(pairs, pair{user: t.userID, scheme: id})
		}
		c.logger.InfoContext(ctx, "profile update fan-out",
			"user_id", t.userID,
			"version", t.profileVersion,
			"schemes", len(schemeIDs),
		)
		return pairs, nil
	}
	return nil, nil
}

// reassessPair re-evaluates one (user, scheme) pair against the latest
// profile and the currently effective rule set, with retry on transient
// failures. Integrity errors are reported immediately, never retried. A
// stale-reject from the ledger means a newer result already committed, which
// is success for our purposes.
func (c *Coordinator) reassessPair(ctx context.Context, userID domain.UserID, schemeID domain.SchemeID) error {
	var lastErr error
	backoff := c.cfg.BackoffBase
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		err := c.reassessOnce(ctx, userID, schemeID)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		if attempt == c.cfg.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
	return dErrors.Wrap(lastErr, dErrors.CodeUnavailable, "reassessment retries exhausted")
}

func (c *Coordinator) reassessOnce(ctx context.Context, userID domain.UserID, schemeID domain.SchemeID) error {
	profile, err := c.profiles.Latest(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Profile erased between fan-out and execution; nothing to do.
			return nil
		}
		return err
	}
	scheme, err := c.schemes.Get(ctx, schemeID)
	if err != nil {
		return err
	}
	ruleSet, err := c.ruleSets.Current(ctx, schemeID)
	if err != nil {
		return err
	}

	start := time.Now()
	outcome, err := c.evaluator.Evaluate(profile.Fields, scheme, ruleSet)
	if err != nil {
		return err
	}
	c.metrics.ObserveEvaluation(string(outcome.Status), time.Since(start))

	err = c.ledger.Append(ctx, ledger.Entry{
		UserID:         userID,
		SchemeID:       schemeID,
		ProfileVersion: profile.Version,
		RuleSetVersion: ruleSet.Version,
		Outcome:        outcome,
		ProducedAt:     time.Now().UTC(),
	})
	if errors.Is(err, sentinel.ErrStale) {
		c.metrics.IncLedgerStaleReject()
		return nil
	}
	if err != nil {
		return err
	}
	c.metrics.IncReassessCommit()
	return nil
}

// retryable reports whether an error is transient. Integrity violations and
// bad input never heal on retry.
func retryable(err error) bool {
	switch {
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation),
		dErrors.HasCode(err, dErrors.CodeBadRequest),
		dErrors.HasCode(err, dErrors.CodeNotFound):
		return false
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrInvalidState):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
