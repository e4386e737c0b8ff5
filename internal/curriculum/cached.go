package curriculum

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultHierarchyTTL = 10 * time.Minute

// HierarchyCache caches assembled hierarchies in Redis, keyed by
// subject slug. The hierarchy is read-mostly reference data shared by
// every student viewing the same subject; per-student ledger data is
// never stored here. Cache failures degrade to a direct load.
type HierarchyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewHierarchyCache creates a cache with the given TTL. A zero ttl
// uses the default of 10 minutes.
func NewHierarchyCache(client *redis.Client, ttl time.Duration) *HierarchyCache {
	if ttl <= 0 {
		ttl = defaultHierarchyTTL
	}
	return &HierarchyCache{client: client, ttl: ttl}
}

// Load returns the hierarchy for slug, from cache when fresh, loading
// through the store otherwise. Not-found and unsupported results are
// never cached.
func (c *HierarchyCache) Load(ctx context.Context, store Store, slug string) (*Hierarchy, error) {
	key := cacheKey(slug)

	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var h Hierarchy
		if err := json.Unmarshal(data, &h); err == nil {
			return &h, nil
		}
		slog.Warn("discarding corrupt cached hierarchy", "slug", slug)
	} else if err != redis.Nil {
		slog.Warn("hierarchy cache read failed", "slug", slug, "error", err)
	}

	h, err := LoadHierarchy(ctx, store, slug)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(h)
	if err != nil {
		return h, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("hierarchy cache write failed", "slug", slug, "error", err)
	}
	return h, nil
}

// Invalidate drops the cached hierarchy for slug, forcing the next
// Load to hit the store. Called after content-admin edits.
func (c *HierarchyCache) Invalidate(ctx context.Context, slug string) error {
	if err := c.client.Del(ctx, cacheKey(slug)).Err(); err != nil {
		return fmt.Errorf("invalidate hierarchy %q: %w", slug, err)
	}
	return nil
}

func cacheKey(slug string) string {
	return "hierarchy:" + slug
}
