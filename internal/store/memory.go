package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ActivateLLC/arbi-sub000/internal/model"
)

// MemoryStore implements Store with in-memory maps. It is the default
// backing for the engine's opportunity table; the process owns all state.
type MemoryStore struct {
	mu            sync.RWMutex
	opportunities map[string]*model.TrackedOpportunity
	purchases     []model.Purchase
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		opportunities: make(map[string]*model.TrackedOpportunity),
	}
}

func (s *MemoryStore) UpsertOpportunity(_ context.Context, t *model.TrackedOpportunity) error {
	if t.Opportunity.ID == "" {
		return fmt.Errorf("store: opportunity id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	cp := *t
	s.opportunities[t.Opportunity.ID] = &cp
	return nil
}

func (s *MemoryStore) GetOpportunity(_ context.Context, id string) (*model.TrackedOpportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.opportunities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListOpportunities(_ context.Context) ([]model.TrackedOpportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]model.TrackedOpportunity, 0, len(s.opportunities))
	for _, t := range s.opportunities {
		list = append(list, *t)
	}
	return list, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.opportunities[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, t := range s.opportunities {
		if t.Opportunity.Expired(now) {
			delete(s.opportunities, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) InsertPurchase(_ context.Context, p *model.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purchases = append(s.purchases, *p)
	return nil
}

func (s *MemoryStore) ListPurchasesByUser(_ context.Context, userID string) ([]model.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Purchase
	for _, p := range s.purchases {
		if p.UserID == userID {
			result = append(result, p)
		}
	}
	return result, nil
}
