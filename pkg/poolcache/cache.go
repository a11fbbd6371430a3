// Package poolcache serves pool state reads with per-chain TTLs and
// single-flight deduplication so a burst of opportunities against the same
// pool triggers exactly one on-chain read.
package poolcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/hulrap/sandwichcore"
	"github.com/hulrap/sandwichcore/pkg/chainadapter"
)

// defaultSoftCap bounds each chain's pool cache, per §4.2's 4096-entries
// default. Eviction is plain LRU; pinned pools are evicted like any other.
const defaultSoftCap = 4096

// defaultTTL is the per-chain freshness window before a cached pool read is
// considered stale and re-fetched on next access.
var defaultTTL = map[sandwichcore.Chain]time.Duration{
	sandwichcore.ChainEthereum: 500 * time.Millisecond,
	sandwichcore.ChainBSC:      300 * time.Millisecond,
	sandwichcore.ChainSolana:   150 * time.Millisecond,
}

type entry struct {
	pool      sandwichcore.Pool
	fetchedAt time.Time
}

// Cache is a per-chain pool-state cache backed by an LRU with TTL-based
// staleness and single-flight fetch deduplication.
type Cache struct {
	chain   sandwichcore.Chain
	ttl     time.Duration
	adapter chainadapter.Adapter

	mu     sync.RWMutex
	lru    *lru.Cache[string, entry]
	group  singleflight.Group
	pinned map[string]bool
}

// New builds a Cache for chain, reading through adapter on miss/stale.
func New(chain sandwichcore.Chain, adapter chainadapter.Adapter) (*Cache, error) {
	inner, err := lru.New[string, entry](defaultSoftCap)
	if err != nil {
		return nil, fmt.Errorf("poolcache: new lru: %w", err)
	}
	ttl, ok := defaultTTL[chain]
	if !ok {
		ttl = 300 * time.Millisecond
	}
	return &Cache{chain: chain, ttl: ttl, adapter: adapter, lru: inner, pinned: make(map[string]bool)}, nil
}

// Pin records a pool ID (e.g. high-liquidity, verified) in the pinned set.
// Get and the LRU's eviction do not consult that set, so a pinned pool is
// refreshed and evicted exactly like an unpinned one.
func (c *Cache) Pin(poolID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned[poolID] = true
}

func key(protocol sandwichcore.Protocol, poolID string) string {
	return string(protocol) + ":" + poolID
}

// Get returns the pool state for (protocol, poolID), serving a cached value
// within TTL or fetching through the adapter otherwise. Concurrent misses for
// the same key collapse into one adapter call.
func (c *Cache) Get(ctx context.Context, protocol sandwichcore.Protocol, poolID string) (*sandwichcore.Pool, error) {
	k := key(protocol, poolID)

	c.mu.RLock()
	if e, ok := c.lru.Get(k); ok && time.Since(e.fetchedAt) < c.ttl {
		c.mu.RUnlock()
		pool := e.pool
		return &pool, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do(k, func() (any, error) {
		view, err := c.adapter.GetPoolState(ctx, protocol, poolID)
		if err != nil {
			return nil, err
		}
		pool := sandwichcore.Pool{
			Chain:         c.chain,
			Protocol:      protocol,
			PoolID:        poolID,
			ReserveA:      view.ReserveA,
			ReserveB:      view.ReserveB,
			FeeBps:        view.FeeBps,
			SqrtPriceX96:  view.SqrtPriceX96,
			LastRefreshMS: time.Now().UnixMilli(),
		}
		if view.SqrtPriceX96 != nil {
			pool.Tick = sandwichcore.Tick{Current: view.Tick}
			pool.Ticks = map[int32]*sandwichcore.TickInfo{}
		}

		c.mu.Lock()
		c.lru.Add(k, entry{pool: pool, fetchedAt: time.Now()})
		c.mu.Unlock()
		return &pool, nil
	})
	if err != nil {
		return nil, err
	}
	pool := *result.(*sandwichcore.Pool)
	return &pool, nil
}

// Invalidate drops a cached entry, forcing the next Get to refetch, e.g.
// once a bundle targeting this pool has landed and the cached state is
// stale. Core does not call it; landed bundles leave the entry to expire by
// TTL.
func (c *Cache) Invalidate(protocol sandwichcore.Protocol, poolID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key(protocol, poolID))
}

// Len returns the number of cached pool entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}
