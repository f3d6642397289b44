package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/directory/models"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded jurisdiction store for tests and single-node use.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.JurisdictionID]*models.Jurisdiction
	byCode  map[string]id.JurisdictionID
}

func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[id.JurisdictionID]*models.Jurisdiction),
		byCode:  make(map[string]id.JurisdictionID),
	}
}

func (s *InMemory) CreateIfCodeAvailable(_ context.Context, j *models.Jurisdiction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byCode[j.Code]; exists {
		return sentinel.ErrConflict
	}
	clone := *j
	s.records[j.ID] = &clone
	s.byCode[j.Code] = j.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, jurisdictionID id.JurisdictionID) (*models.Jurisdiction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.records[jurisdictionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *j
	return &clone, nil
}

func (s *InMemory) FindByCode(_ context.Context, code string) (*models.Jurisdiction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jurisdictionID, ok := s.byCode[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.records[jurisdictionID]
	return &clone, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Jurisdiction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Jurisdiction, 0, len(s.records))
	for _, j := range s.records {
		clone := *j
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Code < out[k].Code })
	return out, nil
}

func (s *InMemory) ListChildren(_ context.Context, parentID id.JurisdictionID) ([]*models.Jurisdiction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Jurisdiction, 0)
	for _, j := range s.records {
		if j.ParentID != nil && *j.ParentID == parentID {
			clone := *j
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Code < out[k].Code })
	return out, nil
}
