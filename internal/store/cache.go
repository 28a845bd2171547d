package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/metcalfc/commonplace/internal/logger"
)

// Cache holds JSON-encoded store responses.
type Cache interface {
	// Get decodes the value under key into dst and reports whether it was
	// there.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache connects to addr and checks the connection.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb, prefix: "commonplace:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+key, raw, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// CachedStore serves reads from a cache and fills it from the wrapped store.
// Cache failures fall through to the store. Misses are not cached, and
// concurrent misses on one key share a single store call.
type CachedStore struct {
	store Store
	cache Cache
	ttl   time.Duration
	log   *logger.Logger
	group singleflight.Group
}

func NewCachedStore(s Store, c Cache, ttl time.Duration, log *logger.Logger) *CachedStore {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedStore{store: s, cache: c, ttl: ttl, log: log.With("service", "store_cache")}
}

// cached runs load at most once per key across concurrent callers. The
// shared call is detached from the first caller's cancellation so one
// client going away does not fail the others.
func cached[T any](ctx context.Context, s *CachedStore, key string, load func(context.Context) (T, error)) (T, error) {
	var v T
	hit, err := s.cache.Get(ctx, key, &v)
	if err != nil {
		s.log.Warn("cache read failed", "key", key, "error", err)
	}
	if hit {
		return v, nil
	}

	res, err, shared := s.group.Do(key, func() (any, error) {
		flight := context.WithoutCancel(ctx)
		v, err := load(flight)
		if err != nil {
			return v, err
		}
		if err := s.cache.Set(flight, key, v, s.ttl); err != nil {
			s.log.Warn("cache write failed", "key", key, "error", err)
		}
		return v, nil
	})
	if shared {
		s.log.Debug("shared store call", "key", key)
	}
	if err != nil {
		return v, err
	}
	return res.(T), nil
}

func (s *CachedStore) Authors(ctx context.Context) ([]Person, error) {
	return cached(ctx, s, "authors", func(ctx context.Context) ([]Person, error) {
		return s.store.Authors(ctx)
	})
}

func (s *CachedStore) AuthorBySlug(ctx context.Context, slug string) (Person, error) {
	return cached(ctx, s, "author:"+slug, func(ctx context.Context) (Person, error) {
		return s.store.AuthorBySlug(ctx, slug)
	})
}

func (s *CachedStore) WorksByAuthor(ctx context.Context, authorID string) ([]Work, error) {
	return cached(ctx, s, "works:"+authorID, func(ctx context.Context) ([]Work, error) {
		return s.store.WorksByAuthor(ctx, authorID)
	})
}

func (s *CachedStore) WorkBySlug(ctx context.Context, slug string) (Work, error) {
	return cached(ctx, s, "work:"+slug, func(ctx context.Context) (Work, error) {
		return s.store.WorkBySlug(ctx, slug)
	})
}
