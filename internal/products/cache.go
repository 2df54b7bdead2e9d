package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/orderengine/pkg/logger"
	"github.com/angelmondragon/orderengine/pkg/pagination"
	"github.com/angelmondragon/orderengine/pkg/redis"
)

const (
	defaultCacheTTL    = 5 * time.Minute
	defaultCachePrefix = "orderengine"
)

// cacheStore is the slice of the redis client used for catalog caching.
type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// CachedReaderParams configure the caching wrapper.
type CachedReaderParams struct {
	Reader    Reader
	Cache     cacheStore
	Logger    *logger.Logger
	KeyPrefix string
	TTL       time.Duration
}

// CachedReader serves catalog reads from redis and falls back to the wrapped
// Reader on a miss or a cache failure.
type CachedReader struct {
	inner  Reader
	cache  cacheStore
	logg   *logger.Logger
	prefix string
	ttl    time.Duration
}

// NewCachedReader wraps reader with a redis read-through cache.
func NewCachedReader(params CachedReaderParams) (*CachedReader, error) {
	if params.Reader == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("cache store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	prefix := strings.Trim(strings.TrimSpace(params.KeyPrefix), ":")
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedReader{
		inner:  params.Reader,
		cache:  params.Cache,
		logg:   params.Logger,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (c *CachedReader) GetProduct(ctx context.Context, id int64) (*ProductDTO, error) {
	key := c.productKey(id)
	var cached ProductDTO
	if c.load(ctx, key, &cached) {
		return &cached, nil
	}
	product, err := c.inner.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, product)
	return product, nil
}

func (c *CachedReader) ListAvailable(ctx context.Context, limit int) ([]ProductDTO, error) {
	limit = pagination.NormalizeLimit(limit)
	key := c.listPrefix() + strconv.Itoa(limit)
	var cached []ProductDTO
	if c.load(ctx, key, &cached) {
		return cached, nil
	}
	products, err := c.inner.ListAvailable(ctx, limit)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, products)
	return products, nil
}

// InvalidateProducts drops the cached entries for the given products together
// with every cached listing, since stock changes move products in and out of them.
func (c *CachedReader) InvalidateProducts(ctx context.Context, ids ...int64) error {
	var errs error
	if len(ids) > 0 {
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, c.productKey(id))
		}
		if err := c.cache.Del(ctx, keys...); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invalidate products: %w", err))
		}
	}
	if _, err := c.cache.DeleteByPrefix(ctx, c.listPrefix()); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("invalidate product listings: %w", err))
	}
	return errs
}

func (c *CachedReader) productKey(id int64) string {
	return fmt.Sprintf("%s:catalog:product:%d", c.prefix, id)
}

func (c *CachedReader) listPrefix() string {
	return c.prefix + ":catalog:list:"
}

func (c *CachedReader) load(ctx context.Context, key string, dest any) bool {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logg.Warn(c.logg.WithField(ctx, "cache_key", key), fmt.Sprintf("catalog cache read failed: %v", err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "cache_key", key), "discarding undecodable catalog cache entry")
		return false
	}
	return true
}

func (c *CachedReader) store(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, string(payload), c.ttl); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "cache_key", key), fmt.Sprintf("catalog cache write failed: %v", err))
	}
}
