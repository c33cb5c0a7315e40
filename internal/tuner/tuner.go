// Package tuner implements the Fee/Congestion Tuner: an adaptive priority
// fee that backs off on consecutive successes and escalates on failures or
// network congestion, grounded on
// original_source/backend/src/trading/fee_tuner.py.
package tuner

import (
	"sync"
	"time"
)

// CongestionLevel mirrors the Python service's low/normal/high/critical tiers.
type CongestionLevel string

const (
	CongestionLow      CongestionLevel = "low"
	CongestionNormal   CongestionLevel = "normal"
	CongestionHigh     CongestionLevel = "high"
	CongestionCritical CongestionLevel = "critical"
)

// Config holds the tuner's tunable percentages and clamps.
type Config struct {
	BaseFeeMicroLamports        uint64
	MinFeeMicroLamports         uint64
	MaxFeeMicroLamports         uint64
	SuccessDecreasePct          float64
	FailureIncreasePct          float64
	TimeoutIncreasePct          float64
	HighCongestionMultiplier    float64
	CriticalCongestionMultiplier float64
	AdjustmentCooldown          time.Duration
	RecentOutcomesWindow        int
}

// DefaultConfig mirrors fee_tuner.py's stated defaults.
func DefaultConfig() Config {
	return Config{
		BaseFeeMicroLamports:         50_000,
		MinFeeMicroLamports:          10_000,
		MaxFeeMicroLamports:          1_000_000,
		SuccessDecreasePct:           10,
		FailureIncreasePct:           50,
		TimeoutIncreasePct:           25,
		HighCongestionMultiplier:     2.0,
		CriticalCongestionMultiplier: 4.0,
		AdjustmentCooldown:           30 * time.Second,
		RecentOutcomesWindow:         20,
	}
}

type outcome struct {
	success   bool
	errorType string
}

// Tuner is the mutex-protected adaptive fee state object, matching the
// teacher's getter/setter state-object idiom used throughout internal/chain
// and internal/position.
type Tuner struct {
	mu sync.Mutex
	cfg Config

	currentFee            uint64
	lastAdjustment        time.Time
	consecutiveSuccesses  int
	consecutiveFailures   int
	recentOutcomes        []outcome
	congestion            CongestionLevel
}

// New constructs a Tuner seeded at the configured base fee.
func New(cfg Config) *Tuner {
	return &Tuner{
		cfg:         cfg,
		currentFee:  cfg.BaseFeeMicroLamports,
		congestion:  CongestionNormal,
	}
}

// CurrentFee returns the congestion-adjusted effective fee in
// microlamports-per-compute-unit, clamped to [min,max].
func (t *Tuner) CurrentFee() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clamp(t.effectiveLocked())
}

func (t *Tuner) effectiveLocked() uint64 {
	multiplier := 1.0
	switch t.congestion {
	case CongestionLow:
		multiplier = 0.75
	case CongestionHigh:
		multiplier = t.cfg.HighCongestionMultiplier
	case CongestionCritical:
		multiplier = t.cfg.CriticalCongestionMultiplier
	}
	return uint64(float64(t.currentFee) * multiplier)
}

// RecordOutcome feeds a send result back into the tuner. success/failure
// streaks drive the exponential backoff/escalation; errorType
// "timeout"/"blockhash_expired" gets a smaller bump than other failures, per
// fee_tuner.py. Returns the (unadjusted) current fee after the update.
func (t *Tuner) RecordOutcome(success bool, errorType string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if !t.lastAdjustment.IsZero() && now.Sub(t.lastAdjustment) < t.cfg.AdjustmentCooldown {
		return t.currentFee
	}

	t.recentOutcomes = append(t.recentOutcomes, outcome{success: success, errorType: errorType})
	if len(t.recentOutcomes) > t.cfg.RecentOutcomesWindow {
		t.recentOutcomes = t.recentOutcomes[len(t.recentOutcomes)-t.cfg.RecentOutcomesWindow:]
	}

	if success {
		t.consecutiveSuccesses++
		t.consecutiveFailures = 0
		if t.consecutiveSuccesses >= 3 {
			t.currentFee = uint64(float64(t.currentFee) * (1 - t.cfg.SuccessDecreasePct/100))
			t.lastAdjustment = now
		}
	} else {
		t.consecutiveFailures++
		t.consecutiveSuccesses = 0
		increase := 1 + t.cfg.FailureIncreasePct/100
		if errorType == "timeout" || errorType == "blockhash_expired" {
			increase = 1 + t.cfg.TimeoutIncreasePct/100
		}
		t.currentFee = uint64(float64(t.currentFee) * increase)
		t.lastAdjustment = now
	}

	t.currentFee = t.clamp(t.currentFee)
	return t.currentFee
}

// UpdateCongestion sets the current network congestion tier, typically fed
// by a percentile bucket over recent prioritization fees (spec's
// supplemented congestion-fee feature).
func (t *Tuner) UpdateCongestion(level CongestionLevel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.congestion = level
}

// ResetToBase restores the tuner to its configured base fee, clearing
// streak state.
func (t *Tuner) ResetToBase() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentFee = t.cfg.BaseFeeMicroLamports
	t.consecutiveSuccesses = 0
	t.consecutiveFailures = 0
	t.lastAdjustment = time.Time{}
}

func (t *Tuner) clamp(fee uint64) uint64 {
	if fee < t.cfg.MinFeeMicroLamports {
		return t.cfg.MinFeeMicroLamports
	}
	if fee > t.cfg.MaxFeeMicroLamports {
		return t.cfg.MaxFeeMicroLamports
	}
	return fee
}

// Stats is a snapshot for logging/metrics.
type Stats struct {
	CurrentFee           uint64
	EffectiveFee         uint64
	BaseFee              uint64
	Congestion           CongestionLevel
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
	RecentSuccessRate    float64
	RecentTrades         int
}

// Snapshot returns the tuner's current stats.
func (t *Tuner) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	successRate := 0.0
	if n := len(t.recentOutcomes); n > 0 {
		successes := 0
		for _, o := range t.recentOutcomes {
			if o.success {
				successes++
			}
		}
		successRate = float64(successes) / float64(n)
	}

	return Stats{
		CurrentFee:           t.currentFee,
		EffectiveFee:         t.clamp(t.effectiveLocked()),
		BaseFee:              t.cfg.BaseFeeMicroLamports,
		Congestion:           t.congestion,
		ConsecutiveSuccesses: t.consecutiveSuccesses,
		ConsecutiveFailures:  t.consecutiveFailures,
		RecentSuccessRate:    successRate,
		RecentTrades:         len(t.recentOutcomes),
	}
}

// CongestionFromRecentFees buckets a slice of recent network prioritization
// fees (microlamports) by percentile rank against a reference sample,
// supplementing fee_tuner.py's level input with the concrete seeding method
// SPEC_FULL.md's congestion-fee percentile bucket calls for.
func CongestionFromRecentFees(recent []uint64, sample uint64) CongestionLevel {
	if len(recent) == 0 {
		return CongestionNormal
	}
	below := 0
	for _, f := range recent {
		if f <= sample {
			below++
		}
	}
	pct := float64(below) / float64(len(recent))
	switch {
	case pct >= 0.95:
		return CongestionCritical
	case pct >= 0.75:
		return CongestionHigh
	case pct <= 0.25:
		return CongestionLow
	default:
		return CongestionNormal
	}
}
