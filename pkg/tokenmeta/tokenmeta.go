// Package tokenmeta caches per-token decimals/symbol/tax/blacklist state so
// the detector can reject obviously unsandwichable swaps without an on-chain
// read on the hot path.
package tokenmeta

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hulrap/sandwichcore"
)

const defaultCapacity = 16384

// Resolver fetches metadata for a token not yet in the cache, e.g. via an
// ERC-20 decimals()/symbol() call or an SPL mint account read.
type Resolver interface {
	Resolve(ctx context.Context, chain sandwichcore.Chain, address string) (*sandwichcore.TokenMeta, error)
}

// Cache is an LRU of TokenMeta, keyed by (chain, address), with an explicit
// blacklist overlay that always wins regardless of what a Resolver reports.
type Cache struct {
	resolver Resolver

	mu        sync.RWMutex
	lru       *lru.Cache[string, sandwichcore.TokenMeta]
	blacklist map[string]bool
}

// New builds a Cache backed by resolver for cache misses.
func New(resolver Resolver) (*Cache, error) {
	inner, err := lru.New[string, sandwichcore.TokenMeta](defaultCapacity)
	if err != nil {
		return nil, fmt.Errorf("tokenmeta: new lru: %w", err)
	}
	return &Cache{resolver: resolver, lru: inner, blacklist: make(map[string]bool)}, nil
}

func key(chain sandwichcore.Chain, address string) string {
	return string(chain) + ":" + address
}

// Blacklist marks a token as permanently excluded regardless of its resolved
// tax/verification state, e.g. following an operator incident report.
func (c *Cache) Blacklist(chain sandwichcore.Chain, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blacklist[key(chain, address)] = true
}

// Get returns cached metadata, resolving through the configured Resolver on
// miss. The blacklist overlay is applied after resolution so a Resolver can
// never un-blacklist a token this process has already flagged.
func (c *Cache) Get(ctx context.Context, chain sandwichcore.Chain, address string) (*sandwichcore.TokenMeta, error) {
	k := key(chain, address)

	c.mu.RLock()
	if meta, ok := c.lru.Get(k); ok {
		c.mu.RUnlock()
		return c.applyBlacklist(k, meta), nil
	}
	c.mu.RUnlock()

	meta, err := c.resolver.Resolve(ctx, chain, address)
	if err != nil {
		return nil, fmt.Errorf("tokenmeta: resolve %s: %w", address, err)
	}

	c.mu.Lock()
	c.lru.Add(k, *meta)
	c.mu.Unlock()

	return c.applyBlacklist(k, *meta), nil
}

func (c *Cache) applyBlacklist(k string, meta sandwichcore.TokenMeta) *sandwichcore.TokenMeta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.blacklist[k] {
		meta.IsBlacklisted = true
	}
	return &meta
}
