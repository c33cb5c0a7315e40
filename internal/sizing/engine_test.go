package sizing

import "testing"

// TestSizingCapScenario mirrors spec.md's concrete scenario 4:
// R_in=100e9, R_out=1e15, target=100bps, max=500bps, max_liq_pct=2.5%,
// max_buy=2 SOL. Expected result: amount ~0.50 SOL, capped_by=target_impact.
func TestSizingCapScenario(t *testing.T) {
	reserveIn := uint64(100_000_000_000)
	reserveOut := uint64(1_000_000_000_000_000)

	p := DefaultParams()
	p.MinBuyLamports = 1_000_000
	p.MaxBuyLamports = 2_000_000_000

	res := Size(reserveIn, reserveOut, p)
	if res.Dropped {
		t.Fatalf("expected a sized result, got dropped: %s", res.DropReason)
	}
	if res.CappedBy != CappedByTargetImpact {
		t.Fatalf("expected capped_by=target_impact, got %s", res.CappedBy)
	}

	gotSOL := float64(res.AmountLamports) / 1e9
	if gotSOL < 0.45 || gotSOL > 0.55 {
		t.Fatalf("expected amount ~0.50 SOL, got %v SOL", gotSOL)
	}
}

func TestImpactBpsMonotoneNonDecreasing(t *testing.T) {
	reserveIn := uint64(100_000_000_000)
	reserveOut := uint64(1_000_000_000_000_000)

	prev := -1
	for _, amt := range []uint64{1_000_000, 10_000_000, 100_000_000, 1_000_000_000, 5_000_000_000} {
		impact := ImpactBps(amt, reserveIn, reserveOut)
		if impact < prev {
			t.Fatalf("impact_bps not monotone: amount %d gave %d after %d", amt, impact, prev)
		}
		prev = impact
	}
}

func TestOutNeverExceedsReserveOut(t *testing.T) {
	reserveIn := uint64(100_000_000_000)
	reserveOut := uint64(1_000_000_000_000_000)

	out := Out(reserveIn*1000, reserveIn, reserveOut)
	if out >= reserveOut {
		t.Fatalf("out(a) must stay below reserveOut, got %d >= %d", out, reserveOut)
	}
}
