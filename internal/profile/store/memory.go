// Package store provides versioned profile snapshot stores.
package store

import (
	"context"
	"sync"
	"time"

	"suvidha/internal/profile/models"
	"suvidha/pkg/domain"
	"suvidha/pkg/platform/sentinel"
)

// InMemory implements the profile store with mutex-guarded maps. Version
// assignment happens under the write lock, so versions are strictly
// increasing per user even under concurrent Put calls.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[domain.UserID][]*models.Profile
}

func NewInMemory() *InMemory {
	return &InMemory{profiles: make(map[domain.UserID][]*models.Profile)}
}

// Put appends a new immutable snapshot and returns it with its assigned
// version.
func (s *InMemory) Put(ctx context.Context, userID domain.UserID, fields domain.Fields, now time.Time) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.profiles[userID]
	p := &models.Profile{
		UserID:    userID,
		Version:   domain.ProfileVersion(len(history) + 1),
		Fields:    fields.Clone(),
		CreatedAt: now,
	}
	s.profiles[userID] = append(history, p)

	copied := *p
	copied.Fields = p.Fields.Clone()
	return &copied, nil
}

// Get returns the given version; sentinel.ErrNotFound when absent.
func (s *InMemory) Get(ctx context.Context, userID domain.UserID, version domain.ProfileVersion) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.profiles[userID]
	if version < 1 || int(version) > len(history) {
		return nil, sentinel.ErrNotFound
	}
	p := history[version-1]
	copied := *p
	copied.Fields = p.Fields.Clone()
	return &copied, nil
}

// Latest returns the newest snapshot; sentinel.ErrNotFound for unknown users.
func (s *InMemory) Latest(ctx context.Context, userID domain.UserID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.profiles[userID]
	if len(history) == 0 {
		return nil, sentinel.ErrNotFound
	}
	p := history[len(history)-1]
	copied := *p
	copied.Fields = p.Fields.Clone()
	return &copied, nil
}

// Erase removes every snapshot for the user. Idempotent.
func (s *InMemory) Erase(ctx context.Context, userID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	return nil
}
