// Package scheme provides scheme metadata stores: an in-memory
// implementation for development and tests, and a PostgreSQL one for
// production.
package scheme

import (
	"context"
	"sort"
	"sync"

	"suvidha/internal/catalog/models"
	"suvidha/pkg/domain"
	"suvidha/pkg/platform/sentinel"
)

// InMemory implements ports.SchemeStore with a mutex-guarded map.
type InMemory struct {
	mu      sync.RWMutex
	schemes map[domain.SchemeID]*models.Scheme
}

func NewInMemory() *InMemory {
	return &InMemory{schemes: make(map[domain.SchemeID]*models.Scheme)}
}

func (s *InMemory) Create(ctx context.Context, scheme *models.Scheme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.schemes[scheme.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *scheme
	s.schemes[scheme.ID] = &copied
	return nil
}

func (s *InMemory) Get(ctx context.Context, schemeID domain.SchemeID) (*models.Scheme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scheme, ok := s.schemes[schemeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *scheme
	return &copied, nil
}

func (s *InMemory) List(ctx context.Context) ([]*models.Scheme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Scheme, 0, len(s.schemes))
	for _, scheme := range s.schemes {
		copied := *scheme
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
