package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store is the durable cache layer behind the in-memory one. Implementations
// must support point lookup and upsert; expiry is the cache's concern and is
// checked lazily on read.
type Store interface {
	Get(ctx context.Context, region string, key MeterKey) (MeterPrice, bool, error)
	Put(ctx context.Context, price MeterPrice) error
}

// CacheConfig tunes the two cache layers and scopes the upstream query.
type CacheConfig struct {
	// MemoryTTL bounds how long an entry is served from memory before the
	// durable layer is consulted again. Short on purpose; operational tuning
	// of the durable layer should take effect within this window.
	MemoryTTL time.Duration

	// DurableTTL bounds how long a fetched price is trusted at all.
	DurableTTL time.Duration

	// ServiceFamily and ProductName scope the upstream price list query.
	ServiceFamily string
	ProductName   string
}

// DefaultCacheConfig returns the TTLs used in production.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MemoryTTL:     45 * time.Second,
		DurableTTL:    24 * time.Hour,
		ServiceFamily: "Storage",
		ProductName:   "Tiered Files",
	}
}

type memEntry struct {
	price    MeterPrice
	cachedAt time.Time
}

// Cache resolves (region, meter key) pairs to unit prices through a short-lived
// in-memory layer, a durable store, and finally the upstream retail list.
//
// The cache is the only shared mutable state in the engine. Concurrent
// refreshes of the same key are safe to race: entries are value objects and
// the last successful write wins. Construct one per process and share it by
// reference; tests construct isolated instances.
type Cache struct {
	mu     sync.RWMutex
	mem    map[string]memEntry
	store  Store
	retail PriceLister
	cfg    CacheConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewCache creates a price cache over the given durable store and upstream
// price lister.
func NewCache(store Store, retail PriceLister, cfg CacheConfig, logger zerolog.Logger) *Cache {
	if cfg.MemoryTTL <= 0 {
		cfg.MemoryTTL = DefaultCacheConfig().MemoryTTL
	}
	if cfg.DurableTTL <= 0 {
		cfg.DurableTTL = DefaultCacheConfig().DurableTTL
	}
	return &Cache{
		mem:    make(map[string]memEntry),
		store:  store,
		retail: retail,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func memKey(region string, key MeterKey) string {
	return region + "|" + key.String()
}

// Resolve returns the unit price for a meter in a region.
//
// Lookup order: memory, durable store, upstream refresh. A cached entry with a
// non-positive price is never a hit and forces a refresh. When the upstream is
// unreachable the best available expired entry is returned as a degraded
// result; only when nothing is cached at all does Resolve report not-found.
// Callers must treat not-found as a partial result, not a fatal error.
func (c *Cache) Resolve(ctx context.Context, region string, key MeterKey) (MeterPrice, bool) {
	now := c.now()

	if price, ok := c.fromMemory(region, key, now); ok {
		return price, true
	}

	if price, ok := c.fromStore(ctx, region, key, now); ok {
		c.putMemory(price, now)
		return price, true
	}

	if err := c.Refresh(ctx, region); err != nil {
		c.logger.Warn().
			Str("region", region).
			Str("meter_key", key.String()).
			Err(err).
			Msg("price refresh failed; falling back to stale cache")
		return c.staleFallback(ctx, region, key)
	}

	if price, ok := c.fromMemory(region, key, now); ok {
		return price, true
	}
	c.logger.Debug().
		Str("region", region).
		Str("meter_key", key.String()).
		Msg("meter has no price after refresh")
	return MeterPrice{}, false
}

// Refresh queries the upstream price list for a region and repopulates both
// cache layers. Each meter entry is written independently; an abandoned
// refresh leaves previously written entries intact and never a partial one.
func (c *Cache) Refresh(ctx context.Context, region string) error {
	items, err := c.retail.Fetch(ctx, RetailQuery{
		ServiceFamily: c.cfg.ServiceFamily,
		ProductName:   c.cfg.ProductName,
		Region:        region,
	})
	if err != nil {
		return err
	}

	now := c.now()
	cached, skipped := 0, 0
	for _, item := range items {
		key, ok := ParseMeterName(item.MeterName)
		if !ok {
			skipped++
			continue
		}
		if item.RetailPrice <= 0 {
			skipped++
			c.logger.Debug().
				Str("region", region).
				Str("meter_name", item.MeterName).
				Msg("skipping zero-priced meter from upstream snapshot")
			continue
		}

		price := MeterPrice{
			Region:          region,
			MeterKey:        key.String(),
			UnitPrice:       item.RetailPrice,
			UnitOfMeasure:   item.UnitOfMeasure,
			Currency:        item.CurrencyCode,
			SourceMeterName: item.MeterName,
			FetchedAt:       now,
			ExpiresAt:       now.Add(c.cfg.DurableTTL),
		}

		c.putMemory(price, now)
		if err := c.store.Put(ctx, price); err != nil {
			c.logger.Warn().
				Str("region", region).
				Str("meter_key", price.MeterKey).
				Err(err).
				Msg("failed to persist price to durable cache")
			continue
		}
		cached++
	}

	c.logger.Info().
		Str("region", region).
		Int("cached", cached).
		Int("skipped", skipped).
		Msg("price cache refreshed")
	return nil
}

func (c *Cache) fromMemory(region string, key MeterKey, now time.Time) (MeterPrice, bool) {
	c.mu.RLock()
	entry, ok := c.mem[memKey(region, key)]
	c.mu.RUnlock()
	if !ok {
		return MeterPrice{}, false
	}
	if now.Sub(entry.cachedAt) > c.cfg.MemoryTTL || entry.price.Expired(now) || !entry.price.Valid() {
		return MeterPrice{}, false
	}
	return entry.price, true
}

func (c *Cache) fromStore(ctx context.Context, region string, key MeterKey, now time.Time) (MeterPrice, bool) {
	price, found, err := c.store.Get(ctx, region, key)
	if err != nil {
		c.logger.Warn().
			Str("region", region).
			Str("meter_key", key.String()).
			Err(err).
			Msg("durable price cache lookup failed")
		return MeterPrice{}, false
	}
	if !found || price.Expired(now) || !price.Valid() {
		return MeterPrice{}, false
	}
	return price, true
}

func (c *Cache) putMemory(price MeterPrice, now time.Time) {
	c.mu.Lock()
	c.mem[price.Region+"|"+price.MeterKey] = memEntry{price: price, cachedAt: now}
	c.mu.Unlock()
}

// staleFallback serves the freshest expired entry available when the upstream
// is unreachable. A degraded answer beats none: the caller attaches warnings
// rather than aborting the estimate.
func (c *Cache) staleFallback(ctx context.Context, region string, key MeterKey) (MeterPrice, bool) {
	c.mu.RLock()
	entry, inMem := c.mem[memKey(region, key)]
	c.mu.RUnlock()
	if inMem && entry.price.Valid() {
		c.logger.Warn().
			Str("region", region).
			Str("meter_key", key.String()).
			Time("expired_at", entry.price.ExpiresAt).
			Msg("serving expired price from memory (degraded)")
		return entry.price, true
	}

	price, found, err := c.store.Get(ctx, region, key)
	if err != nil || !found || !price.Valid() {
		return MeterPrice{}, false
	}
	c.logger.Warn().
		Str("region", region).
		Str("meter_key", key.String()).
		Time("expired_at", price.ExpiresAt).
		Msg("serving expired price from durable cache (degraded)")
	return price, true
}
