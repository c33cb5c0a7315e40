package execution

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/raysnipe/sniper/internal/chain"
	"github.com/raysnipe/sniper/internal/position"
)

// Router picks between Path A (direct) and Path B (aggregator) for entries,
// and falls back from direct to aggregator on exits, grounded on
// original_source/backend/src/trading/position_manager.py's bundle-first/
// aggregator-fallback close path and the teacher's executor.go/
// executor_fast.go path split.
type Router struct {
	direct       *DirectExecutor
	aggregator   *AggregatorExecutor
	preferDirect bool
}

// NewRouter constructs a Router. Either executor may be nil, in which case
// the other handles every call.
func NewRouter(direct *DirectExecutor, aggregator *AggregatorExecutor, preferDirect bool) *Router {
	return &Router{direct: direct, aggregator: aggregator, preferDirect: preferDirect}
}

// Buy opens a position, returning the result plus which path executed it.
func (r *Router) Buy(ctx context.Context, mint string, amountLamports uint64) (*BuyResult, string, error) {
	if r.preferDirect && r.direct != nil {
		res, err := r.direct.Buy(ctx, mint, amountLamports)
		if err == nil {
			return res, "direct", nil
		}
		log.Warn().Err(err).Str("mint", mint).Msg("direct buy failed, falling back to aggregator")
	}
	if r.aggregator == nil {
		return nil, "", fmt.Errorf("router: no aggregator configured for fallback")
	}
	res, err := r.aggregator.Buy(ctx, mint, amountLamports)
	if err != nil {
		log.Warn().Str("mint", mint).Str("diagnosis", chain.HumanErrorWithAction(err)).Msg("buy failed on both paths")
	}
	return res, "aggregator", err
}

// SellAll implements position.Seller: try direct first (no aggregator
// round-trip latency), fall back to the aggregator on failure.
func (r *Router) SellAll(ctx context.Context, p *position.Position) (string, float64, error) {
	if r.direct != nil {
		sig, price, err := r.direct.SellAll(ctx, p)
		if err == nil {
			return sig, price, nil
		}
		log.Warn().Err(err).Msg("direct sell failed, falling back to aggregator")
	}
	if r.aggregator == nil {
		return "", 0, fmt.Errorf("router: no aggregator configured for fallback")
	}
	sig, price, err := r.aggregator.SellAll(ctx, p)
	if err != nil {
		log.Warn().Str("mint", p.TokenMint).Str("diagnosis", chain.HumanErrorWithAction(err)).Msg("sell failed on both paths")
	}
	return sig, price, err
}

// SellFraction implements position.Seller, same fallback order as SellAll.
func (r *Router) SellFraction(ctx context.Context, p *position.Position, fraction float64) (string, float64, error) {
	if r.direct != nil {
		sig, price, err := r.direct.SellFraction(ctx, p, fraction)
		if err == nil {
			return sig, price, nil
		}
		log.Warn().Err(err).Msg("direct partial sell failed, falling back to aggregator")
	}
	if r.aggregator == nil {
		return "", 0, fmt.Errorf("router: no aggregator configured for fallback")
	}
	sig, price, err := r.aggregator.SellFraction(ctx, p, fraction)
	if err != nil {
		log.Warn().Str("mint", p.TokenMint).Str("diagnosis", chain.HumanErrorWithAction(err)).Msg("partial sell failed on both paths")
	}
	return sig, price, err
}
