// Package cache stores rendered hierarchy views so repeated reads of a
// milestone skip the tree load and progress computation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a view survives a missed invalidation.
const DefaultTTL = 5 * time.Minute

// RedisHierarchyCache keeps JSON-encoded views under
// keel:hierarchy:{milestone_id}.
type RedisHierarchyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisHierarchyCache creates a cache on an existing client. A
// non-positive ttl uses DefaultTTL.
func NewRedisHierarchyCache(client *redis.Client, ttl time.Duration) *RedisHierarchyCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisHierarchyCache{client: client, ttl: ttl}
}

func key(milestoneID uuid.UUID) string {
	return fmt.Sprintf("keel:hierarchy:%s", milestoneID)
}

// Get returns the cached view, or (nil, false, nil) on a miss.
func (c *RedisHierarchyCache) Get(ctx context.Context, milestoneID uuid.UUID) (*application.HierarchyView, bool, error) {
	data, err := c.client.Get(ctx, key(milestoneID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var view application.HierarchyView
	if err := json.Unmarshal(data, &view); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		return nil, false, nil
	}
	return &view, true, nil
}

// Set stores the view for the cache TTL.
func (c *RedisHierarchyCache) Set(ctx context.Context, view *application.HierarchyView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(view.ID), data, c.ttl).Err()
}

// Invalidate drops the cached view.
func (c *RedisHierarchyCache) Invalidate(ctx context.Context, milestoneID uuid.UUID) error {
	return c.client.Del(ctx, key(milestoneID)).Err()
}

// Ping checks the connection for health reporting.
func (c *RedisHierarchyCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
