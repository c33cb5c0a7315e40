package sizing

import (
	"math"

	"github.com/rs/zerolog/log"
)

// CappedBy is the reason the final sized amount was limited.
type CappedBy string

const (
	CappedByTargetImpact CappedBy = "target_impact"
	CappedByMaxImpact    CappedBy = "max_impact"
	CappedByMaxSOL       CappedBy = "max_sol"
	CappedByMaxLiqPct    CappedBy = "max_liq_pct"
	CappedByMinSOL       CappedBy = "min_sol"
)

// Params mirrors spec §4.4's named thresholds, all lamport/bps denominated.
type Params struct {
	MinBuyLamports       uint64
	MaxBuyLamports       uint64
	TargetImpactBps      int // default 100
	MaxImpactBps         int // default 500
	MaxLiquidityPct      float64 // default 2.5
	RoundTripHardLimitBps int
	MaxRoundTripBps       int
}

// DefaultParams carries spec.md's stated defaults.
func DefaultParams() Params {
	return Params{
		TargetImpactBps:       100,
		MaxImpactBps:          500,
		MaxLiquidityPct:       2.5,
		RoundTripHardLimitBps: 1000,
		MaxRoundTripBps:       300,
	}
}

// Result is the sized outcome returned to the Execution Engine.
type Result struct {
	AmountLamports uint64
	ImpactBps      int
	CappedBy       CappedBy
	Dropped        bool
	DropReason     string
}

// Size runs the binary search for the largest amount within target impact,
// then applies the ceiling chain and the round-trip gate, exactly as spec
// §4.4 (the search-then-cap order is significant: the search first finds
// the impact-optimal size, then ceilings can only shrink it further).
func Size(reserveIn, reserveOut uint64, p Params) Result {
	a := binarySearchTargetImpact(reserveIn, reserveOut, p.MinBuyLamports, p.MaxBuyLamports, p.TargetImpactBps)
	capped := CappedByTargetImpact

	if impact := ImpactBps(a, reserveIn, reserveOut); impact > p.MaxImpactBps {
		a = binarySearchTargetImpact(reserveIn, reserveOut, p.MinBuyLamports, p.MaxBuyLamports, p.MaxImpactBps)
		capped = CappedByMaxImpact
	}

	if p.MaxBuyLamports > 0 && a > p.MaxBuyLamports {
		a = p.MaxBuyLamports
		capped = CappedByMaxSOL
	}

	liqCapLamports := uint64(p.MaxLiquidityPct / 100.0 * float64(reserveIn))
	if liqCapLamports > 0 && a > liqCapLamports {
		a = liqCapLamports
		capped = CappedByMaxLiqPct
	}

	if a < p.MinBuyLamports {
		return Result{
			AmountLamports: 0,
			Dropped:        true,
			DropReason:     "sized amount below min_buy",
			CappedBy:       CappedByMinSOL,
		}
	}

	return Result{
		AmountLamports: a,
		ImpactBps:      ImpactBps(a, reserveIn, reserveOut),
		CappedBy:       capped,
	}
}

// binarySearchTargetImpact finds the largest amount in [lo, hi] whose impact
// does not exceed targetBps. ImpactBps(a) is monotone non-decreasing in a
// (spec §8 invariant), so binary search is well-founded.
func binarySearchTargetImpact(reserveIn, reserveOut, lo, hi uint64, targetBps int) uint64 {
	if hi == 0 {
		hi = reserveIn / 10 // sane fallback ceiling if caller left max_buy unset
	}
	if lo > hi {
		return 0
	}

	best := uint64(0)
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if ImpactBps(mid, reserveIn, reserveOut) <= targetBps {
			best = mid
			if mid == hi {
				break
			}
			lo = mid + 1
		} else {
			if mid == 0 {
				break
			}
			hi = mid - 1
		}
	}
	return best
}

// RoundTripGate simulates selling the expected output back into the pool and
// either drops the trade (hard limit exceeded) or scales the buy down
// (soft limit exceeded), per spec §4.4.
func RoundTripGate(amountIn, reserveIn, reserveOut uint64, p Params, minBuy uint64) Result {
	buyImpact := ImpactBps(amountIn, reserveIn, reserveOut)
	out := Out(amountIn, reserveIn, reserveOut)

	// Selling back: pool state shifts by the buy, so the sell walks the
	// post-buy reserves in the opposite direction.
	postReserveIn := reserveIn + amountIn
	postReserveOut := reserveOut - out
	sellImpact := ImpactBps(out, postReserveOut, postReserveIn)

	roundTripBps := buyImpact + sellImpact

	if roundTripBps > p.RoundTripHardLimitBps {
		log.Debug().Int("round_trip_bps", roundTripBps).Msg("sizing: round-trip hard limit exceeded, dropping")
		return Result{Dropped: true, DropReason: "round_trip_hard_limit_bps exceeded"}
	}

	if roundTripBps > p.MaxRoundTripBps {
		scale := float64(p.MaxRoundTripBps) / float64(roundTripBps)
		scaled := uint64(math.Floor(float64(amountIn) * scale))
		if scaled < minBuy {
			scaled = minBuy
		}
		return Result{AmountLamports: scaled, ImpactBps: ImpactBps(scaled, reserveIn, reserveOut), CappedBy: CappedByMaxSOL}
	}

	return Result{AmountLamports: amountIn, ImpactBps: buyImpact}
}
