package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"assessment-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ItemLoader fetches items from a backing store (e.g., Postgres).
type ItemLoader interface {
	ListItems(ctx context.Context, assessmentID string) ([]domain.Item, error)
}

// ItemCache caches the ordered item list of an assessment in Redis and falls back to a
// loader on cache miss. Items are stored as one JSON array: SET assessment:{id}:items [...]
// The correct option travels with the items; the cache is a server-side trust zone.
type ItemCache struct {
	client *redis.Client
	loader ItemLoader
	ttl    time.Duration
	sf     singleflight.Group
	log    logrus.FieldLogger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewItemCache(client *redis.Client, loader ItemLoader, ttl time.Duration) *ItemCache {
	return &ItemCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    logrus.WithField("component", "redis-item-cache"),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ItemCache) ListItems(ctx context.Context, assessmentID string) ([]domain.Item, error) {
	if items, ok := c.lookup(ctx, assessmentID); ok {
		return items, nil
	}

	result, err, _ := c.sf.Do(assessmentID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if items, ok := c.lookup(ctx, assessmentID); ok {
			return items, nil
		}

		items, err := c.loader.ListItems(ctx, assessmentID)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(items)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, c.key(assessmentID), raw, c.ttlWithJitter()).Err(); err != nil {
			// best effort: the loader result is still good
			c.log.WithError(err).WithField("assessment", assessmentID).Warn("cache fill failed")
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Item), nil
}

// Invalidate drops the cached items of an assessment.
func (c *ItemCache) Invalidate(ctx context.Context, assessmentID string) error {
	return c.client.Del(ctx, c.key(assessmentID)).Err()
}

func (c *ItemCache) lookup(ctx context.Context, assessmentID string) ([]domain.Item, bool) {
	raw, err := c.client.Get(ctx, c.key(assessmentID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).WithField("assessment", assessmentID).Warn("cache read failed")
		}
		return nil, false
	}
	var items []domain.Item
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil, false
	}
	return items, true
}

func (c *ItemCache) key(assessmentID string) string {
	return "assessment:" + assessmentID + ":items"
}

func (c *ItemCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
