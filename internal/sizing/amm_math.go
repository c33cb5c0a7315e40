// Package sizing implements the Sizing Engine: constant-product AMM math,
// binary search for a target price-impact buy size, ceiling application,
// and the round-trip (buy-then-sell) impact gate.
package sizing

import (
	"math"

	"github.com/holiman/uint256"
)

// FeeNumerator/FeeDenominator encode the pool's 0.25% swap fee
// (spec §4.4: "0.25% fee (numerator 25, denominator 10000)").
const (
	FeeNumerator   = 25
	FeeDenominator = 10000
)

// Out computes the constant-product swap output for amountIn against
// reserves (reserveIn, reserveOut), net of the pool fee:
//
//	out(a) = floor(a * (D-f) * R_out / (R_in*D + a*(D-f)))
//
// uint256 is used throughout because a*(D-f)*R_out overflows uint64 for
// realistic SOL-denominated reserves (spec.md's own worked example uses
// R_out=10^15).
func Out(amountIn, reserveIn, reserveOut uint64) uint64 {
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0
	}

	a := uint256.NewInt(amountIn)
	rIn := uint256.NewInt(reserveIn)
	rOut := uint256.NewInt(reserveOut)
	d := uint256.NewInt(FeeDenominator)
	dMinusF := uint256.NewInt(FeeDenominator - FeeNumerator)

	numerator := new(uint256.Int).Mul(a, dMinusF)
	numerator.Mul(numerator, rOut)

	denomLeft := new(uint256.Int).Mul(rIn, d)
	denomRight := new(uint256.Int).Mul(a, dMinusF)
	denominator := new(uint256.Int).Add(denomLeft, denomRight)

	if denominator.IsZero() {
		return 0
	}

	result := new(uint256.Int).Div(numerator, denominator)
	if !result.IsUint64() {
		return math.MaxUint64
	}
	return result.Uint64()
}

// ImpactBps computes the price impact in basis points of buying amountIn
// against reserves (reserveIn, reserveOut):
//
//	impact_bps(a) = round(10000 * (1 - (out(a)/a) / (R_out/R_in)))
func ImpactBps(amountIn, reserveIn, reserveOut uint64) int {
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0
	}
	out := Out(amountIn, reserveIn, reserveOut)

	execPrice := float64(out) / float64(amountIn)
	spotPrice := float64(reserveOut) / float64(reserveIn)
	if spotPrice == 0 {
		return 0
	}

	impact := 10000.0 * (1.0 - execPrice/spotPrice)
	return int(math.Round(impact))
}
