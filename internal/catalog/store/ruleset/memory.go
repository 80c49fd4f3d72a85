// Package ruleset provides the versioned rule-set stores. Rule sets are
// append-only: publish closes the current version and inserts the next, and
// no code path mutates a published version.
package ruleset

import (
	"context"
	"sort"
	"sync"
	"time"

	"suvidha/internal/catalog/models"
	"suvidha/internal/rules"
	"suvidha/pkg/domain"
	"suvidha/pkg/platform/sentinel"
)

// InMemory implements ports.RuleSetStore. A single write lock serializes
// publishes; readers take the read lock and therefore always observe either
// the pre-publish or post-publish state, never a half-applied one.
type InMemory struct {
	mu sync.RWMutex
	// versions per scheme, ascending by version number
	sets map[domain.SchemeID][]*models.RuleSet
}

func NewInMemory() *InMemory {
	return &InMemory{sets: make(map[domain.SchemeID][]*models.RuleSet)}
}

func (s *InMemory) Publish(ctx context.Context, schemeID domain.SchemeID, criteria []rules.Criterion, effectiveFrom time.Time) (*models.RuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.sets[schemeID]
	next := &models.RuleSet{
		SchemeID:      schemeID,
		Version:       1,
		EffectiveFrom: effectiveFrom,
		Criteria:      append([]rules.Criterion(nil), criteria...),
	}

	if len(history) > 0 {
		current := history[len(history)-1]
		if !effectiveFrom.After(current.EffectiveFrom) {
			return nil, sentinel.ErrConflict
		}
		until := effectiveFrom
		current.EffectiveUntil = &until
		next.Version = current.Version + 1
		next.Supersedes = current.Version
	}

	s.sets[schemeID] = append(history, next)

	copied := cloneRuleSet(next)
	return copied, nil
}

func (s *InMemory) Resolve(ctx context.Context, schemeID domain.SchemeID, at time.Time) (*models.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sets[schemeID]
	// Latest version whose effective_from is not after `at`; ranges do not
	// overlap, so the first hit scanning backwards is the only candidate.
	idx := sort.Search(len(history), func(i int) bool {
		return history[i].EffectiveFrom.After(at)
	})
	if idx == 0 {
		return nil, sentinel.ErrNotFound
	}
	candidate := history[idx-1]
	if !candidate.Contains(at) {
		return nil, sentinel.ErrNotFound
	}
	return cloneRuleSet(candidate), nil
}

func (s *InMemory) Current(ctx context.Context, schemeID domain.SchemeID) (*models.RuleSet, error) {
	return s.Resolve(ctx, schemeID, time.Now())
}

func (s *InMemory) History(ctx context.Context, schemeID domain.SchemeID) ([]*models.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sets[schemeID]
	out := make([]*models.RuleSet, 0, len(history))
	for _, rs := range history {
		out = append(out, cloneRuleSet(rs))
	}
	return out, nil
}

func cloneRuleSet(rs *models.RuleSet) *models.RuleSet {
	copied := *rs
	if rs.EffectiveUntil != nil {
		until := *rs.EffectiveUntil
		copied.EffectiveUntil = &until
	}
	copied.Criteria = append([]rules.Criterion(nil), rs.Criteria...)
	return &copied
}
