// Package store provides ledger backends. Both enforce the same contract:
// append-only history, a per-(user,scheme) monotonic version guard, and
// aggregate counters that survive erasure.
package store

import (
	"context"
	"sync"
	"time"

	assessmodels "suvidha/internal/assess/models"
	"suvidha/internal/ledger"
	"suvidha/pkg/domain"
	"suvidha/pkg/platform/sentinel"
)

type pairKey struct {
	user   domain.UserID
	scheme domain.SchemeID
}

// InMemory implements ledger.Store with mutex-guarded maps.
type InMemory struct {
	mu      sync.RWMutex
	entries map[pairKey][]ledger.Entry
	totals  ledger.Totals
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[pairKey][]ledger.Entry)}
}

func (s *InMemory) Append(ctx context.Context, entry ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{user: entry.UserID, scheme: entry.SchemeID}
	history := s.entries[key]

	if len(history) > 0 {
		last := history[len(history)-1]
		// Monotonic write guard: never regress either source version.
		if entry.ProfileVersion < last.ProfileVersion || entry.RuleSetVersion < last.RuleSetVersion {
			return sentinel.ErrStale
		}
		// ProducedAt is totally ordered per pair even when the clock stalls.
		if !entry.ProducedAt.After(last.ProducedAt) {
			entry.ProducedAt = last.ProducedAt.Add(time.Nanosecond)
		}
	}
	if entry.ProducedAt.IsZero() {
		entry.ProducedAt = time.Now().UTC()
	}

	entry.Outcome.MissingRequirements = append([]string(nil), entry.Outcome.MissingRequirements...)
	s.entries[key] = append(history, entry)
	s.bumpTotal(entry.Outcome.Status)
	return nil
}

func (s *InMemory) bumpTotal(status assessmodels.Status) {
	switch status {
	case assessmodels.StatusEligible:
		s.totals.Eligible++
	case assessmodels.StatusPartial:
		s.totals.Partial++
	default:
		s.totals.Ineligible++
	}
}

func (s *InMemory) History(ctx context.Context, userID domain.UserID, schemeID domain.SchemeID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.entries[pairKey{user: userID, scheme: schemeID}]
	out := make([]ledger.Entry, len(history))
	copy(out, history)
	return out, nil
}

func (s *InMemory) Current(ctx context.Context, userID domain.UserID, schemeID domain.SchemeID) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.entries[pairKey{user: userID, scheme: schemeID}]
	if len(history) == 0 {
		return nil, sentinel.ErrNotFound
	}
	entry := history[len(history)-1]
	return &entry, nil
}

func (s *InMemory) UsersAssessedFor(ctx context.Context, schemeID domain.SchemeID) ([]domain.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[domain.UserID]struct{})
	var out []domain.UserID
	for key := range s.entries {
		if key.scheme != schemeID {
			continue
		}
		if _, dup := seen[key.user]; dup {
			continue
		}
		seen[key.user] = struct{}{}
		out = append(out, key.user)
	}
	return out, nil
}

func (s *InMemory) SchemesAssessed(ctx context.Context, userID domain.UserID) ([]domain.SchemeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[domain.SchemeID]struct{})
	var out []domain.SchemeID
	for key := range s.entries {
		if key.user != userID {
			continue
		}
		if _, dup := seen[key.scheme]; dup {
			continue
		}
		seen[key.scheme] = struct{}{}
		out = append(out, key.scheme)
	}
	return out, nil
}

func (s *InMemory) Erase(ctx context.Context, userID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if key.user == userID {
			delete(s.entries, key)
		}
	}
	return nil
}

func (s *InMemory) AggregateTotals(ctx context.Context) (ledger.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals, nil
}
