package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"assessment-session-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ItemLoader fetches items from a backing store (e.g., Postgres).
type ItemLoader interface {
	ListItems(ctx context.Context, assessmentID string) ([]domain.Item, error)
}

// ItemCache caches item lists with TTL to avoid repeated DB hits on attempt start.
type ItemCache struct {
	loader ItemLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedItems
}

type cachedItems struct {
	items     []domain.Item
	expiresAt time.Time
}

func NewItemCache(loader ItemLoader, ttl time.Duration) *ItemCache {
	return &ItemCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedItems),
	}
}

func (c *ItemCache) ListItems(ctx context.Context, assessmentID string) ([]domain.Item, error) {
	if items, ok := c.lookup(assessmentID); ok {
		return items, nil
	}

	result, err, _ := c.sf.Do(assessmentID, func() (interface{}, error) {
		if items, ok := c.lookup(assessmentID); ok {
			return items, nil
		}

		items, err := c.loader.ListItems(ctx, assessmentID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[assessmentID] = cachedItems{
			items:     items,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneItems(result.([]domain.Item)), nil
}

// Invalidate drops a cached item list.
func (c *ItemCache) Invalidate(assessmentID string) {
	c.mu.Lock()
	delete(c.cache, assessmentID)
	c.mu.Unlock()
}

func (c *ItemCache) lookup(assessmentID string) ([]domain.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[assessmentID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return cloneItems(entry.items), true
}

func (c *ItemCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func cloneItems(items []domain.Item) []domain.Item {
	out := make([]domain.Item, len(items))
	for i, it := range items {
		it.Options = append([]string(nil), it.Options...)
		out[i] = it
	}
	return out
}
