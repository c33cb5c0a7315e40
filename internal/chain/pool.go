package chain

import "context"

// PoolState is the subset of a Raydium pool's on-chain state the direct
// executor needs to build a swap instruction and compute its own sizing
// reserves, resolved by the Pool/Market Cache.
type PoolState struct {
	AMMID           string
	BaseVault       string
	QuoteVault      string
	BaseMint        string
	QuoteMint       string
	OpenOrders      string
	MarketID        string
	MarketProgramID string
	TargetOrders    string
	BaseReserve     uint64
	QuoteReserve    uint64
}

// MarketState is the subset of an OpenBook market's state the direct
// executor needs, resolved alongside PoolState by the Pool/Market Cache.
type MarketState struct {
	Bids             string
	Asks             string
	EventQueue       string
	BaseVault        string
	QuoteVault       string
	VaultSignerNonce uint64
}

// PoolResolver looks up the current pool and market state for a mint,
// satisfied by the Pool/Market Cache.
type PoolResolver interface {
	ResolvePool(ctx context.Context, mint string) (PoolState, MarketState, error)
}
