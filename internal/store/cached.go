package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/voyagen/worldtv/internal/cache"
	"github.com/voyagen/worldtv/internal/models"
)

// Cache TTLs for per-user lists.
const (
	ttlFavorites = 2 * time.Minute
	ttlRecent    = 30 * time.Second
)

// CachedStore wraps a Store with a Redis caching layer for user lists.
// Reads are served from cache when possible; writes invalidate the
// user's cached lists.
type CachedStore struct {
	inner  Store
	cache  *cache.Redis
	logger logrus.FieldLogger
}

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis, logger logrus.FieldLogger) *CachedStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CachedStore{inner: inner, cache: c, logger: logger.WithField("component", "store-cache")}
}

// --- cached read operations ---

func (c *CachedStore) ListFavorites(ctx context.Context, userID string) ([]models.Favorite, error) {
	key := favoritesKey(userID)
	if v, err := cache.Get[[]models.Favorite](ctx, c.cache, key); err == nil {
		return v, nil
	}
	favs, err := c.inner.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, favs, ttlFavorites)
	return favs, nil
}

func (c *CachedStore) ListRecent(ctx context.Context, userID string, limit int) ([]models.WatchEntry, error) {
	key := fmt.Sprintf("%s:%d", recentPrefix(userID), recentLimit(limit))
	if v, err := cache.Get[[]models.WatchEntry](ctx, c.cache, key); err == nil {
		return v, nil
	}
	entries, err := c.inner.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, entries, ttlRecent)
	return entries, nil
}

// --- write operations with cache invalidation ---

func (c *CachedStore) AddFavorite(ctx context.Context, userID string, ch models.Channel) error {
	if err := c.inner.AddFavorite(ctx, userID, ch); err != nil {
		return err
	}
	c.invalidate(ctx, favoritesKey(userID))
	return nil
}

func (c *CachedStore) RemoveFavorite(ctx context.Context, userID, streamURL string) error {
	if err := c.inner.RemoveFavorite(ctx, userID, streamURL); err != nil {
		return err
	}
	c.invalidate(ctx, favoritesKey(userID))
	return nil
}

func (c *CachedStore) RecordWatch(ctx context.Context, userID string, ch models.Channel, at time.Time) error {
	if err := c.inner.RecordWatch(ctx, userID, ch, at); err != nil {
		return err
	}
	c.invalidatePattern(ctx, recentPrefix(userID)+":*")
	return nil
}

func (c *CachedStore) ClearRecent(ctx context.Context, userID string) error {
	if err := c.inner.ClearRecent(ctx, userID); err != nil {
		return err
	}
	c.invalidatePattern(ctx, recentPrefix(userID)+":*")
	return nil
}

// --- passthrough (no caching) ---

func (c *CachedStore) IsFavorite(ctx context.Context, userID, streamURL string) (bool, error) {
	return c.inner.IsFavorite(ctx, userID, streamURL)
}

// --- helpers ---

func (c *CachedStore) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := cache.Set(ctx, c.cache, key, v, ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache set failed")
	}
}

// invalidate deletes exact cache keys, logging any errors.
func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil && !errors.Is(err, redis.Nil) {
		c.logger.WithError(err).WithField("keys", keys).Warn("Cache delete failed")
	}
}

// invalidatePattern deletes all keys matching the given glob patterns.
func (c *CachedStore) invalidatePattern(ctx context.Context, patterns ...string) {
	for _, p := range patterns {
		if err := cache.DelPattern(ctx, c.cache, p); err != nil {
			c.logger.WithError(err).WithField("pattern", p).Warn("Cache delete pattern failed")
		}
	}
}

func favoritesKey(userID string) string {
	return "worldtv:favorites:" + userHash(userID)
}

func recentPrefix(userID string) string {
	return "worldtv:recent:" + userHash(userID)
}

// userHash keeps client-supplied user ids out of the key space so they
// cannot inject glob characters into SCAN patterns.
func userHash(userID string) string {
	h := sha256.Sum256([]byte(userID))
	return fmt.Sprintf("%x", h[:8])
}
