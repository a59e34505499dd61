package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/procurehub/dealengine/internal/domain"
)

// DefaultCacheTTL bounds how stale a cached vendor profile may get.
const DefaultCacheTTL = 5 * time.Minute

const vendorKeyPrefix = "dealengine:vendor:"

// VendorLoader fetches a vendor profile from the source of truth.
type VendorLoader func(ctx context.Context) (*domain.VendorProfile, error)

// Cache is a read-through Redis cache in front of the vendor catalog.
// Cache failures degrade to the loader; they are never fatal.
type Cache struct {
	rdb redis.Cmdable
	ttl time.Duration
	log zerolog.Logger
}

// NewCache wraps a Redis client. A zero ttl falls back to the default.
func NewCache(rdb redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{rdb: rdb, ttl: ttl, log: logger}
}

// Vendor returns the cached profile for id, falling through to load on
// a miss and writing the result back with the configured TTL.
func (c *Cache) Vendor(ctx context.Context, id string, load VendorLoader) (*domain.VendorProfile, error) {
	key := vendorKeyPrefix + id

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var v domain.VendorProfile
		if uerr := json.Unmarshal(data, &v); uerr == nil {
			return &v, nil
		}
		c.log.Warn().Str("vendor_id", id).Msg("corrupt cache entry, reloading")
	} else if err != redis.Nil {
		c.log.Warn().Err(err).Str("vendor_id", id).Msg("vendor cache read failed")
	}

	v, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vendor %s: %w", id, err)
	}

	if payload, merr := json.Marshal(v); merr == nil {
		if serr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
			c.log.Warn().Err(serr).Str("vendor_id", id).Msg("vendor cache write failed")
		}
	}
	return v, nil
}

// Invalidate drops the cached entry for a vendor.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, vendorKeyPrefix+id).Err()
}
