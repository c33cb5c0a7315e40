// Package poolcache implements the Pool/Market Cache: a hot tier using the
// teacher's atomic double-buffer idiom (internal/chain.BlockhashCache) for
// sub-millisecond reads of recently-seen pools, backed by an LRU cold tier
// for everything else. Grounded on
// original_source/backend/src/raydium_direct/cache.py's two-TTL design.
package poolcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/raysnipe/sniper/internal/chain"
)

// Config holds the hot/cold TTLs and cold-tier capacity, mirroring
// cache.py's ttl_ms_hot/ttl_ms_cold/max_size.
type Config struct {
	HotTTL         time.Duration
	ColdTTL        time.Duration
	MaxColdEntries int
}

// DefaultConfig mirrors cache.py's stated defaults (5s hot, 30s cold, 256
// entries).
func DefaultConfig() Config {
	return Config{
		HotTTL:         5 * time.Second,
		ColdTTL:        30 * time.Second,
		MaxColdEntries: 256,
	}
}

// Entry is a resolved pool/market pair with its fetch timestamp.
type Entry struct {
	Pool      chain.PoolState
	Market    chain.MarketState
	FetchedAt time.Time
}

func (e *Entry) expired(ttl time.Duration) bool {
	return e == nil || time.Since(e.FetchedAt) > ttl
}

// Fetcher resolves a mint to its pool and market state from chain/RPC,
// on a cache miss.
type Fetcher interface {
	FetchPool(ctx context.Context, mint string) (chain.PoolState, chain.MarketState, error)
}

// Cache is the Pool/Market Cache. It implements chain.PoolResolver, so
// a DirectExecutor can be pointed at it directly.
type Cache struct {
	cfg     Config
	fetcher Fetcher

	hot  sync.Map // mint -> *atomic.Pointer[Entry]
	cold *lru.Cache[string, Entry]

	hits   atomic.Int64
	misses atomic.Int64
}

// New constructs a Cache. fetcher is consulted on a full miss (neither hot
// nor cold tier has a live entry).
func New(cfg Config, fetcher Fetcher) *Cache {
	cold, err := lru.New[string, Entry](cfg.MaxColdEntries)
	if err != nil {
		// Only returns an error for a non-positive size, which DefaultConfig
		// never produces; callers passing a bad size get a 1-entry cache
		// rather than a panic on the hot path.
		cold, _ = lru.New[string, Entry](1)
	}
	return &Cache{cfg: cfg, fetcher: fetcher, cold: cold}
}

// ResolvePool satisfies chain.PoolResolver: hot tier, then cold tier,
// then a live RPC fetch, in that order.
func (c *Cache) ResolvePool(ctx context.Context, mint string) (chain.PoolState, chain.MarketState, error) {
	if box, ok := c.hot.Load(mint); ok {
		if e := box.(*atomic.Pointer[Entry]).Load(); !e.expired(c.cfg.HotTTL) {
			c.hits.Add(1)
			return e.Pool, e.Market, nil
		}
	}

	if e, ok := c.cold.Get(mint); ok && !e.expired(c.cfg.ColdTTL) {
		c.hits.Add(1)
		c.promote(mint, e)
		return e.Pool, e.Market, nil
	}

	c.misses.Add(1)
	pool, market, err := c.fetcher.FetchPool(ctx, mint)
	if err != nil {
		return chain.PoolState{}, chain.MarketState{}, err
	}

	entry := Entry{Pool: pool, Market: market, FetchedAt: time.Now()}
	c.promote(mint, entry)
	c.cold.Add(mint, entry)

	log.Debug().Str("mint", mint).Msg("pool cache miss, fetched and cached")
	return pool, market, nil
}

// Invalidate drops a mint from both tiers, e.g. after a failed swap
// suggests the cached reserves are stale.
func (c *Cache) Invalidate(mint string) {
	c.hot.Delete(mint)
	c.cold.Remove(mint)
}

// HitRate returns the cache hit rate percentage, for metrics.
func (c *Cache) HitRate() float64 {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	if total == 0 {
		return 100.0
	}
	return float64(hits) / float64(total) * 100
}

func (c *Cache) promote(mint string, e Entry) {
	box := &atomic.Pointer[Entry]{}
	ev := e
	box.Store(&ev)
	c.hot.Store(mint, box)
}
