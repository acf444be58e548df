package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ActivateLLC/arbi-sub000/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary and invalidate cached entries; reads check
// Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh/invalidate cache) ---

func (s *CachedStore) UpsertOpportunity(ctx context.Context, t *model.TrackedOpportunity) error {
	if err := s.primary.UpsertOpportunity(ctx, t); err != nil {
		return err
	}
	s.cacheOpportunity(ctx, t)
	s.rdb.Del(ctx, listKey())
	return nil
}

func (s *CachedStore) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	if err := s.primary.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, opportunityKey(id), listKey())
	return nil
}

func (s *CachedStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	removed, err := s.primary.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.rdb.Del(ctx, listKey())
	}
	return removed, nil
}

func (s *CachedStore) InsertPurchase(ctx context.Context, p *model.Purchase) error {
	if err := s.primary.InsertPurchase(ctx, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, purchasesKey(p.UserID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetOpportunity(ctx context.Context, id string) (*model.TrackedOpportunity, error) {
	data, err := s.rdb.Get(ctx, opportunityKey(id)).Bytes()
	if err == nil {
		var t model.TrackedOpportunity
		if json.Unmarshal(data, &t) == nil {
			return &t, nil
		}
	}

	t, err := s.primary.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheOpportunity(ctx, t)
	return t, nil
}

func (s *CachedStore) ListOpportunities(ctx context.Context) ([]model.TrackedOpportunity, error) {
	data, err := s.rdb.Get(ctx, listKey()).Bytes()
	if err == nil {
		var list []model.TrackedOpportunity
		if json.Unmarshal(data, &list) == nil {
			return list, nil
		}
	}

	list, err := s.primary.ListOpportunities(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(list); err == nil {
		s.rdb.Set(ctx, listKey(), data, s.ttl)
	}
	return list, nil
}

func (s *CachedStore) ListPurchasesByUser(ctx context.Context, userID string) ([]model.Purchase, error) {
	data, err := s.rdb.Get(ctx, purchasesKey(userID)).Bytes()
	if err == nil {
		var purchases []model.Purchase
		if json.Unmarshal(data, &purchases) == nil {
			return purchases, nil
		}
	}

	purchases, err := s.primary.ListPurchasesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(purchases); err == nil {
		s.rdb.Set(ctx, purchasesKey(userID), data, s.ttl)
	}
	return purchases, nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheOpportunity(ctx context.Context, t *model.TrackedOpportunity) {
	if data, err := json.Marshal(t); err == nil {
		s.rdb.Set(ctx, opportunityKey(t.Opportunity.ID), data, s.ttl)
	}
}

func opportunityKey(id string) string  { return fmt.Sprintf("opportunity:%s", id) }
func listKey() string                  { return "opportunities:all" }
func purchasesKey(uid string) string   { return fmt.Sprintf("purchases:%s", uid) }
