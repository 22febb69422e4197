package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tubefetch/internal/config"
	"tubefetch/internal/entity"
	"tubefetch/internal/observability"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// FetchFunc produces metadata for a URL on a cache miss.
type FetchFunc func(ctx context.Context, url string) (*entity.VideoMetadata, error)

// Cache memoizes video metadata per URL in a bounded LRU with expiry.
// Concurrent misses for the same URL share one fetch. Failures are not cached.
// An optional Store is consulted between the LRU and the fetch.
type Cache struct {
	log     *slog.Logger
	lru     *expirable.LRU[string, *entity.VideoMetadata]
	ttl     time.Duration
	store   Store
	group   singleflight.Group
	metrics *observability.Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore adds a second cache level shared between instances.
func WithStore(store Store) Option {
	return func(c *Cache) {
		c.store = store
	}
}

// NewCache creates a metadata cache sized and aged by cfg.Cache.
func NewCache(log *slog.Logger, cfg *config.Config, metrics *observability.Metrics, opts ...Option) *Cache {
	c := &Cache{
		log:     log.With(slog.String("package", "metadata")),
		lru:     expirable.NewLRU[string, *entity.VideoMetadata](cfg.Cache.Size, nil, cfg.Cache.TTL),
		ttl:     cfg.Cache.TTL,
		metrics: metrics,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns cached metadata for key or calls fetch and caches its result.
func (c *Cache) Get(ctx context.Context, key string, fetch FetchFunc) (*entity.VideoMetadata, error) {
	if meta, ok := c.lru.Get(key); ok {
		c.metrics.RecordCacheLookup(true)
		c.log.DebugContext(ctx, "metadata cache hit", slog.String("key", key))

		return meta, nil
	}

	c.metrics.RecordCacheLookup(false)

	res, err, shared := c.group.Do(key, func() (any, error) {
		// another caller may have filled the entry while we were queued
		if meta, ok := c.lru.Peek(key); ok {
			return meta, nil
		}

		if meta, ok := c.load(ctx, key); ok {
			c.lru.Add(key, meta)

			return meta, nil
		}

		meta, err := fetch(ctx, key)
		if err != nil {
			return nil, err
		}

		c.lru.Add(key, meta)
		c.save(ctx, key, meta)

		return meta, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}

	c.log.DebugContext(ctx, "metadata cache filled", slog.String("key", key), slog.Bool("shared", shared))

	return res.(*entity.VideoMetadata), nil //nolint:forcetypeassert
}

// load reads the second level. Store errors degrade to a miss.
func (c *Cache) load(ctx context.Context, key string) (*entity.VideoMetadata, bool) {
	if c.store == nil {
		return nil, false
	}

	meta, ok, err := c.store.Load(ctx, key)
	if err != nil {
		c.log.WarnContext(ctx, "metadata store load failed", slog.String("key", key), slog.Any("error", err))

		return nil, false
	}

	return meta, ok
}

func (c *Cache) save(ctx context.Context, key string, meta *entity.VideoMetadata) {
	if c.store == nil {
		return
	}

	err := c.store.Save(context.WithoutCancel(ctx), key, meta, c.ttl)
	if err != nil {
		c.log.WarnContext(ctx, "metadata store save failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Len returns the number of entries in the in-memory level.
func (c *Cache) Len() int {
	return c.lru.Len()
}
