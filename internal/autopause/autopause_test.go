package autopause

import (
	"testing"
	"time"
)

func TestConsecutiveFailuresTripsPause(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsecutiveFailures = 3
	m := New(nil, "", cfg, nil, nil)

	if m.RecordFailure("slippage") {
		t.Fatal("should not pause after first failure")
	}
	if m.RecordFailure("slippage") {
		t.Fatal("should not pause after second failure")
	}
	if !m.RecordFailure("slippage") {
		t.Fatal("expected pause on third consecutive failure")
	}

	allowed, reason := m.IsTradingAllowed()
	if allowed || reason != "consecutive_failures" {
		t.Fatalf("expected trading blocked with reason consecutive_failures, got allowed=%v reason=%q", allowed, reason)
	}
}

func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsecutiveFailures = 3
	m := New(nil, "", cfg, nil, nil)

	m.RecordFailure("x")
	m.RecordFailure("x")
	m.RecordSuccess()
	if m.RecordFailure("x") {
		t.Fatal("streak should have reset after a success, should not pause yet")
	}
}

func TestManualResumeClearsPause(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsecutiveFailures = 1
	m := New(nil, "", cfg, nil, nil)

	m.RecordFailure("x")
	if allowed, _ := m.IsTradingAllowed(); allowed {
		t.Fatal("expected trading blocked after pause")
	}
	if !m.ManualResume() {
		t.Fatal("expected manual resume to succeed while paused")
	}
	if allowed, _ := m.IsTradingAllowed(); !allowed {
		t.Fatal("expected trading allowed after manual resume")
	}
}

func TestAutoResumeAfterTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsecutiveFailures = 1
	cfg.FailurePauseDuration = time.Millisecond
	m := New(nil, "", cfg, nil, nil)

	m.RecordFailure("x")
	time.Sleep(5 * time.Millisecond)

	allowed, _ := m.IsTradingAllowed()
	if !allowed {
		t.Fatal("expected auto-resume after the pause window elapsed")
	}
}

func TestDrawdownTripRequiresManualResume(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DrawdownPctTrip = 20
	m := New(nil, "", cfg, nil, nil)

	if !m.CheckDrawdown(25) {
		t.Fatal("expected drawdown trip at 25% with 20% threshold")
	}
	status := m.GetStatus()
	if !status.RequiresManualResume {
		t.Fatal("expected drawdown pause to require manual resume")
	}
}
