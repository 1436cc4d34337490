package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]MeterPrice
	getErr  error
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]MeterPrice)}
}

func (s *fakeStore) Get(_ context.Context, region string, key MeterKey) (MeterPrice, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return MeterPrice{}, false, s.getErr
	}
	price, ok := s.entries[region+"|"+key.String()]
	return price, ok, nil
}

func (s *fakeStore) Put(_ context.Context, price MeterPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[price.Region+"|"+price.MeterKey] = price
	s.puts++
	return nil
}

type fakeLister struct {
	mu      sync.Mutex
	items   []RetailItem
	err     error
	fetches int
}

func (l *fakeLister) Fetch(_ context.Context, _ RetailQuery) ([]RetailItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetches++
	if l.err != nil {
		return nil, l.err
	}
	return l.items, nil
}

func (l *fakeLister) fetchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fetches
}

func testCache(store Store, lister PriceLister) *Cache {
	return NewCache(store, lister, CacheConfig{
		MemoryTTL:     45 * time.Second,
		DurableTTL:    24 * time.Hour,
		ServiceFamily: "Storage",
		ProductName:   "Tiered Files",
	}, zerolog.Nop())
}

func TestCacheResolvePopulatesBothLayers(t *testing.T) {
	store := newFakeStore()
	lister := &fakeLister{items: []RetailItem{
		{MeterName: "Premium Capacity", RetailPrice: 0.000403, UnitOfMeasure: "1 GiB/Hour", CurrencyCode: "USD"},
		{MeterName: "Support Plan Fee", RetailPrice: 12}, // unrecognized, skipped
		{MeterName: "Premium Snapshot Capacity", RetailPrice: 0}, // zero-priced, skipped
	}}
	cache := testCache(store, lister)

	price, ok := cache.Resolve(context.Background(), "eastus", CapacityKey(TierPremium, false))
	require.True(t, ok)
	assert.InDelta(t, 0.000403, price.UnitPrice, 1e-12)
	assert.Equal(t, "Premium Capacity", price.SourceMeterName)
	assert.Equal(t, 1, lister.fetchCount())
	assert.Equal(t, 1, store.puts, "only recognized, priced meters are persisted")

	// Second resolve is a memory hit; upstream is not consulted again.
	_, ok = cache.Resolve(context.Background(), "eastus", CapacityKey(TierPremium, false))
	require.True(t, ok)
	assert.Equal(t, 1, lister.fetchCount())
}

func TestCacheResolveDurableHitSkipsUpstream(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	require.NoError(t, store.Put(context.Background(), MeterPrice{
		Region:    "eastus",
		MeterKey:  CapacityKey(TierStandard, false).String(),
		UnitPrice: 0.000202,
		FetchedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(23 * time.Hour),
	}))
	lister := &fakeLister{}
	cache := testCache(store, lister)

	price, ok := cache.Resolve(context.Background(), "eastus", CapacityKey(TierStandard, false))
	require.True(t, ok)
	assert.InDelta(t, 0.000202, price.UnitPrice, 1e-12)
	assert.Equal(t, 0, lister.fetchCount())
}

// A durable entry with a zero price must not be served; it forces a refresh
// even though its TTL has not expired.
func TestCacheZeroPriceForcesRefresh(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	require.NoError(t, store.Put(context.Background(), MeterPrice{
		Region:    "eastus",
		MeterKey:  CapacityKey(TierUltra, false).String(),
		UnitPrice: 0,
		FetchedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}))
	lister := &fakeLister{items: []RetailItem{
		{MeterName: "Ultra Capacity", RetailPrice: 0.000538, CurrencyCode: "USD"},
	}}
	cache := testCache(store, lister)

	price, ok := cache.Resolve(context.Background(), "eastus", CapacityKey(TierUltra, false))
	require.True(t, ok)
	assert.InDelta(t, 0.000538, price.UnitPrice, 1e-12)
	assert.Equal(t, 1, lister.fetchCount())
}

func TestCacheResolveMissAfterRefresh(t *testing.T) {
	cache := testCache(newFakeStore(), &fakeLister{})

	_, ok := cache.Resolve(context.Background(), "eastus", FacetKey(TierPremium, FacetCoolTiering))
	assert.False(t, ok)
}

func TestCacheUpstreamFailureFallsBackToExpiredEntry(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	require.NoError(t, store.Put(context.Background(), MeterPrice{
		Region:    "eastus",
		MeterKey:  CapacityKey(TierPremium, false).String(),
		UnitPrice: 0.000403,
		FetchedAt: now.Add(-48 * time.Hour),
		ExpiresAt: now.Add(-24 * time.Hour),
	}))
	lister := &fakeLister{err: errors.New("upstream unavailable")}
	cache := testCache(store, lister)

	price, ok := cache.Resolve(context.Background(), "eastus", CapacityKey(TierPremium, false))
	require.True(t, ok, "expired entry beats no entry when upstream is down")
	assert.InDelta(t, 0.000403, price.UnitPrice, 1e-12)
}

func TestCacheUpstreamFailureWithNothingCached(t *testing.T) {
	lister := &fakeLister{err: errors.New("upstream unavailable")}
	cache := testCache(newFakeStore(), lister)

	_, ok := cache.Resolve(context.Background(), "eastus", CapacityKey(TierPremium, false))
	assert.False(t, ok)
}

func TestCacheStoreErrorDegradesToRefresh(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("store offline")
	lister := &fakeLister{items: []RetailItem{
		{MeterName: "Standard Capacity", RetailPrice: 0.000202},
	}}
	cache := testCache(store, lister)

	price, ok := cache.Resolve(context.Background(), "eastus", CapacityKey(TierStandard, false))
	require.True(t, ok)
	assert.InDelta(t, 0.000202, price.UnitPrice, 1e-12)
}

// Concurrent resolves of the same key must not corrupt the cache; entries are
// value objects and the last successful refresh wins.
func TestCacheConcurrentResolve(t *testing.T) {
	store := newFakeStore()
	lister := &fakeLister{items: []RetailItem{
		{MeterName: "Premium Capacity", RetailPrice: 0.000403},
	}}
	cache := testCache(store, lister)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			price, ok := cache.Resolve(context.Background(), "eastus", CapacityKey(TierPremium, false))
			assert.True(t, ok)
			assert.InDelta(t, 0.000403, price.UnitPrice, 1e-12)
		}()
	}
	wg.Wait()
}
