package tuner

import "testing"

func TestFailureIncreasesFee(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdjustmentCooldown = 0
	tu := New(cfg)

	before := tu.CurrentFee()
	after := tu.RecordOutcome(false, "slippage")
	if after <= before {
		t.Fatalf("expected fee to increase after a failure, before=%d after=%d", before, after)
	}
}

func TestThreeConsecutiveSuccessesDecreaseFee(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdjustmentCooldown = 0
	tu := New(cfg)

	tu.RecordOutcome(true, "")
	tu.RecordOutcome(true, "")
	before := tu.CurrentFee()
	after := tu.RecordOutcome(true, "")
	if after >= before {
		t.Fatalf("expected fee to decrease on third consecutive success, before=%d after=%d", before, after)
	}
}

func TestFeeNeverExceedsConfiguredMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdjustmentCooldown = 0
	tu := New(cfg)
	for i := 0; i < 50; i++ {
		tu.RecordOutcome(false, "timeout")
	}
	if tu.CurrentFee() > cfg.MaxFeeMicroLamports {
		t.Fatalf("fee exceeded max: %d > %d", tu.CurrentFee(), cfg.MaxFeeMicroLamports)
	}
}

func TestCongestionFromRecentFeesBuckets(t *testing.T) {
	recent := []uint64{10, 20, 30, 40, 100}
	if got := CongestionFromRecentFees(recent, 100); got != CongestionCritical {
		t.Fatalf("expected critical at the top of the sample, got %v", got)
	}
	if got := CongestionFromRecentFees(recent, 5); got != CongestionLow {
		t.Fatalf("expected low at the bottom of the sample, got %v", got)
	}
}
