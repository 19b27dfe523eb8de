// Package cache provides the Redis-backed permission cache. Only read-only
// surfaces (tree rendering, capability hints) consult it; every mutation
// path resolves permissions fresh against the live graph.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shajara/internal/core/id"
	"shajara/internal/domain/permission"
	"shajara/pkg/logger"
)

// Resolver is the interface the cache wraps.
type Resolver interface {
	Resolve(ctx context.Context, actorID, targetID id.ID) (permission.Level, error)
}

// CachedResolver serves permission levels from Redis with a short TTL.
// Cache failures degrade to a live resolve, never to an error. Staleness
// is bounded by the TTL alone: blocks and moderator assignments have no
// write path in this service, so there is nothing to invalidate on.
type CachedResolver struct {
	inner  Resolver
	client *redis.Client
	ttl    time.Duration
}

// NewCachedResolver wraps a resolver with a Redis cache. A nil client
// disables caching entirely.
func NewCachedResolver(inner Resolver, client *redis.Client, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedResolver{inner: inner, client: client, ttl: ttl}
}

// Resolve returns the cached level when fresh, otherwise resolves live and
// stores the result.
func (c *CachedResolver) Resolve(ctx context.Context, actorID, targetID id.ID) (permission.Level, error) {
	if c.client == nil {
		return c.inner.Resolve(ctx, actorID, targetID)
	}

	key := cacheKey(actorID, targetID)
	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		level := permission.Level(cached)
		if level.Valid() {
			return level, nil
		}
	} else if err != redis.Nil {
		logger.Warn(ctx, "permission cache read failed", "error", err)
	}

	level, err := c.inner.Resolve(ctx, actorID, targetID)
	if err != nil {
		return level, err
	}
	if setErr := c.client.Set(ctx, key, string(level), c.ttl).Err(); setErr != nil {
		logger.Warn(ctx, "permission cache write failed", "error", setErr)
	}
	return level, nil
}

func cacheKey(actorID, targetID id.ID) string {
	return fmt.Sprintf("perm:%s:%s", actorID, targetID)
}
