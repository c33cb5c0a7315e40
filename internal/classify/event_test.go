package classify

import "testing"

func TestDedupEmitsExactlyOnce(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	if c.Dedup("AAA...1") {
		t.Fatal("first observation should not be marked already-seen")
	}
	if !c.Dedup("AAA...1") {
		t.Fatal("second observation of the same signature must be deduped")
	}
}

// TestCoordinatedDetectionScenario mirrors spec.md's concrete scenario 2:
// four distinct buyers at slot 100, CoordinatedBuy emitted once the window
// advances past slot 100+W, with num_buyers=4 and confidence=0.9.
func TestCoordinatedDetectionScenario(t *testing.T) {
	cfg := DefaultConfig()
	c := NewClassifier(cfg)

	buyers := []string{"buyer1", "buyer2", "buyer3", "buyer4"}
	for i, b := range buyers {
		ev := RawEvent{
			Signature: "sig" + b, Slot: 100,
			AccountKeys: []string{b},
			QuoteAmount: 0.5,
		}
		if cand := c.ObserveBuy("T", ev, i); cand != nil {
			t.Fatalf("did not expect an immediate whale emission, got %+v", cand)
		}
	}

	// Below the window: nothing finalizes yet.
	if cands := c.AdvanceSlot("T", 101); len(cands) != 0 {
		t.Fatalf("expected no finalized candidates before the window closes, got %+v", cands)
	}

	cands := c.AdvanceSlot("T", 103)
	if len(cands) != 1 {
		t.Fatalf("expected exactly one CoordinatedBuy, got %d", len(cands))
	}
	got := cands[0]
	if got.NumBuyers != 4 {
		t.Fatalf("expected num_buyers=4, got %d", got.NumBuyers)
	}
	if got.TotalQuoteVolume < 1.99 || got.TotalQuoteVolume > 2.01 {
		t.Fatalf("expected total_quote_volume=2.0, got %v", got.TotalQuoteVolume)
	}
	if got.Confidence < 0.89 || got.Confidence > 0.91 {
		t.Fatalf("expected confidence=0.9, got %v", got.Confidence)
	}
}

func TestWhaleBuyEmitsImmediateCoordinatedBuy(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	ev := RawEvent{Signature: "whale1", Slot: 50, AccountKeys: []string{"whalewallet"}, QuoteAmount: 12.0}
	cand := c.ObserveBuy("T", ev, 0)
	if cand == nil || cand.Type != EventCoordinatedBuy {
		t.Fatalf("expected an immediate whale CoordinatedBuy, got %+v", cand)
	}
	if cand.Confidence != 0.7 {
		t.Fatalf("expected confidence=0.7, got %v", cand.Confidence)
	}
}

func TestMarkEmittedAtMostOnce(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	if !c.MarkEmitted("tokenA") {
		t.Fatal("first mark should succeed")
	}
	if c.MarkEmitted("tokenA") {
		t.Fatal("second mark for the same token must be rejected")
	}
}
