package position

import (
	"testing"
	"time"
)

func newTestPosition(entryPrice float64) *Position {
	return &Position{
		ID:                "T-1",
		TokenMint:         "Tmint111",
		EntryPriceQuote:   entryPrice,
		EntryAmountQuote:  1.0,
		EntryAmountTokens: 1.0 / entryPrice,
		EntryTime:         time.Now(),
	}
}

func TestTakeProfitScenario(t *testing.T) {
	p := newTestPosition(1.0)
	cfg := DefaultExitConfig()
	cfg.EnablePartialTP = false
	cfg.EnableBreakeven = false
	cfg.EnableTrailingStop = false

	var decision ExitDecision
	for _, price := range []float64{1.2, 1.5, 1.76} {
		p.UpdatePrice(price)
		decision = CheckExitConditions(p, cfg)
	}

	if !decision.Terminal || decision.Reason != ExitTakeProfit {
		t.Fatalf("expected take_profit exit, got %+v", decision)
	}
	if pnl := p.PnLPct(); pnl < 75.9 || pnl > 76.1 {
		t.Fatalf("expected realized_pnl_pct=76, got %v", pnl)
	}
}

func TestTrailingStopScenario(t *testing.T) {
	p := newTestPosition(1.0)
	cfg := DefaultExitConfig()
	cfg.EnablePartialTP = false
	cfg.EnableBreakeven = false
	cfg.TrailingActivationPct = 20
	cfg.TrailingStopPct = 10

	ticks := []struct {
		price        float64
		wantTerminal bool
	}{
		{1.15, false},
		{1.25, false}, // arms at 1.25, stop=1.125
		{1.40, false}, // ratchets stop to 1.26
		{1.26, true},  // equal to the ratcheted 1.26 floor; CheckExitConditions fires on current<=floor
	}

	var last ExitDecision
	for _, tk := range ticks {
		p.UpdatePrice(tk.price)
		last = CheckExitConditions(p, cfg)
		if last.Terminal != tk.wantTerminal {
			t.Fatalf("price %v: expected terminal=%v, got %+v", tk.price, tk.wantTerminal, last)
		}
	}

	if !p.Snapshot().TrailingActive {
		t.Fatal("expected trailing stop to be armed")
	}
	if stop := p.Snapshot().TrailingStopPrice; stop < 1.259 || stop > 1.261 {
		t.Fatalf("expected ratcheted stop ~1.26, got %v", stop)
	}
	if last.Reason != ExitTrailing {
		t.Fatalf("expected the 1.26 tick to report trailing_stop, got %v", last.Reason)
	}
}

func TestRugDetectedTakesPriorityOverStopLoss(t *testing.T) {
	p := newTestPosition(1.0)
	cfg := DefaultExitConfig()
	p.UpdatePrice(0.6) // -40%, below both rug (-35) and stop-loss (-15)

	d := CheckExitConditions(p, cfg)
	if !d.Terminal || d.Reason != ExitRugDetected {
		t.Fatalf("expected rug_detected to take priority, got %+v", d)
	}
}

func TestCloseInvokedExactlyOnce(t *testing.T) {
	p := newTestPosition(1.0)
	if ok := p.Close(ExitManual, "sig1", 1.0, time.Now()); !ok {
		t.Fatal("expected first close to succeed")
	}
	if ok := p.Close(ExitManual, "sig2", 1.0, time.Now()); ok {
		t.Fatal("expected second close to be a no-op")
	}
	if p.Snapshot().ExitSignature != "sig1" {
		t.Fatal("expected exit fields to reflect the first close only")
	}
}
