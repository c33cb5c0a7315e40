package poolcache

import (
	"context"
	"testing"
	"time"

	"github.com/raysnipe/sniper/internal/chain"
)

type countingFetcher struct {
	calls int
}

func (f *countingFetcher) FetchPool(ctx context.Context, mint string) (chain.PoolState, chain.MarketState, error) {
	f.calls++
	return chain.PoolState{AMMID: mint + "-amm"}, chain.MarketState{}, nil
}

func TestResolvePoolCachesHotTier(t *testing.T) {
	fetcher := &countingFetcher{}
	cfg := DefaultConfig()
	c := New(cfg, fetcher)

	pool, _, err := c.ResolvePool(context.Background(), "MINT1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.AMMID != "MINT1-amm" {
		t.Fatalf("unexpected pool: %+v", pool)
	}

	if _, _, err := c.ResolvePool(context.Background(), "MINT1"); err != nil {
		t.Fatalf("unexpected error on second resolve: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected one fetch (hot tier hit on second call), got %d", fetcher.calls)
	}
}

func TestResolvePoolRefetchesAfterHotExpiry(t *testing.T) {
	fetcher := &countingFetcher{}
	cfg := DefaultConfig()
	cfg.HotTTL = time.Millisecond
	cfg.ColdTTL = time.Millisecond
	c := New(cfg, fetcher)

	if _, _, err := c.ResolvePool(context.Background(), "MINT2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, _, err := c.ResolvePool(context.Background(), "MINT2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected a refetch after both tiers expired, got %d calls", fetcher.calls)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	fetcher := &countingFetcher{}
	c := New(DefaultConfig(), fetcher)

	c.ResolvePool(context.Background(), "MINT3")
	c.Invalidate("MINT3")
	c.ResolvePool(context.Background(), "MINT3")

	if fetcher.calls != 2 {
		t.Fatalf("expected invalidate to force a refetch, got %d calls", fetcher.calls)
	}
}
