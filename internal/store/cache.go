// internal/store/cache.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kaya-concierge/internal/common/logger"
	"kaya-concierge/internal/models"

	"github.com/redis/go-redis/v9"
)

// CachedLeadStore layers a Redis read-through cache over another LeadStore.
// Get serves from cache when possible; every write goes to the inner store
// first and only then refreshes the cache, so a cache miss is always safe.
// ListAll bypasses the cache: exports need a store snapshot.
type CachedLeadStore struct {
	inner  LeadStore
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedLeadStore(inner LeadStore, redisClient *redis.Client, ttl time.Duration, log logger.Logger) *CachedLeadStore {
	return &CachedLeadStore{
		inner:  inner,
		redis:  redisClient,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "lead-cache"}),
	}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("lead:%d", id)
}

func (s *CachedLeadStore) Create(ctx context.Context, contact models.Contact) (*models.Lead, error) {
	lead, err := s.inner.Create(ctx, contact)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, lead)
	return lead, nil
}

func (s *CachedLeadStore) Update(ctx context.Context, id int64, transcript []models.Message, answers models.Answers) error {
	if err := s.inner.Update(ctx, id, transcript, answers); err != nil {
		return err
	}
	s.refresh(ctx, id)
	return nil
}

func (s *CachedLeadStore) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	if err := s.inner.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.refresh(ctx, id)
	return nil
}

func (s *CachedLeadStore) Get(ctx context.Context, id int64) (*models.Lead, error) {
	if val, err := s.redis.Get(ctx, cacheKey(id)).Result(); err == nil {
		var lead models.Lead
		if err := json.Unmarshal([]byte(val), &lead); err == nil {
			return &lead, nil
		}
	}

	lead, err := s.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, lead)
	return lead, nil
}

func (s *CachedLeadStore) ListAll(ctx context.Context) ([]*models.Lead, error) {
	return s.inner.ListAll(ctx)
}

// cache stores a lead under its key. Failures are logged, never surfaced:
// the inner store already holds the truth.
func (s *CachedLeadStore) cache(ctx context.Context, lead *models.Lead) {
	data, err := json.Marshal(lead)
	if err != nil {
		s.logger.Warn("failed to encode lead for cache", map[string]interface{}{
			"leadId": lead.ID,
			"error":  err.Error(),
		})
		return
	}
	if err := s.redis.Set(ctx, cacheKey(lead.ID), data, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to cache lead", map[string]interface{}{
			"leadId": lead.ID,
			"error":  err.Error(),
		})
	}
}

// refresh reloads the lead from the inner store after a write. If the
// reload fails the stale entry is dropped instead.
func (s *CachedLeadStore) refresh(ctx context.Context, id int64) {
	lead, err := s.inner.Get(ctx, id)
	if err != nil {
		if err := s.redis.Del(ctx, cacheKey(id)).Err(); err != nil {
			s.logger.Warn("failed to evict lead from cache", map[string]interface{}{
				"leadId": id,
				"error":  err.Error(),
			})
		}
		return
	}
	s.cache(ctx, lead)
}
