// Package risk implements the Risk & Safety Gate: a sequential pipeline of
// checks where transport errors default-open and policy violations fail
// closed (spec §4.3).
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raysnipe/sniper/internal/chain"
)

// Level is the risk lattice low < medium < high < critical, grounded on
// original_source/backend/src/risk_sources.py's max_risk.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelMedium:
		return "MEDIUM"
	case LevelHigh:
		return "HIGH"
	default:
		return "CRITICAL"
	}
}

// MaxRisk returns the higher of two risk levels.
func MaxRisk(a, b Level) Level {
	if b > a {
		return b
	}
	return a
}

// View is one source's assessment of a token.
type View struct {
	Level    Level
	Findings []string
}

// Source is a best-effort external risk adapter (spec §9's RiskSource
// redesign note). A Source failing to respond is a Transport error and must
// not fail the gate closed by itself — only PolicyBlockedLevel folding the
// aggregate does that.
type Source interface {
	Name() string
	Query(ctx context.Context, mint string) (View, error)
}

// PolicyBlockedLevel is the level at or above which the gate fails closed.
const PolicyBlockedLevel = LevelHigh

// EvaluateSources queries every configured source, folding best-effort
// failures into a Transport-classified skip rather than aborting the
// pipeline (spec §4.3 / §7: "transport errors default-open").
func EvaluateSources(ctx context.Context, sources []Source, mint string) (Level, []string) {
	overall := LevelLow
	var findings []string
	for _, s := range sources {
		v, err := s.Query(ctx, mint)
		if err != nil {
			log.Debug().Str("source", s.Name()).Err(err).Msg("risk source unavailable, skipping")
			continue
		}
		overall = MaxRisk(overall, v.Level)
		findings = append(findings, v.Findings...)
	}
	return overall, findings
}

// BlockReason identifies which of the ordered checks rejected a candidate,
// formatted as Policy(<check>) per spec §7.
type BlockReason struct {
	Check  string
	Detail string
}

func (b BlockReason) Error() string {
	return fmt.Sprintf("Policy(%s): %s", b.Check, b.Detail)
}

// Thresholds holds the gate's tunable floors/ceilings (spec §4.3).
type Thresholds struct {
	MinScore            float64
	MinLiquidityQuote    float64
	MinPoolAgeSeconds    int64 // default 120 (2min)
	MaxFreshnessSeconds  int64 // default 900 (15min)
	RequireMintRenounced bool
	RequireFreezeRenounced bool
	RequireMetadataImmutable bool
	DailyCapQuote        float64
}

// DefaultThresholds mirrors spec.md's stated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinPoolAgeSeconds:      120,
		MaxFreshnessSeconds:    900,
		RequireMintRenounced:   true,
		RequireFreezeRenounced: true,
	}
}

// Candidate is the minimal input the gate needs from the Classifier's event
// plus whatever the Pool/Market Cache already resolved.
type Candidate struct {
	TokenMint       string
	Score           float64
	LiquidityQuote  float64
	PoolCreatedAt   time.Time
	ObservedAt      time.Time
	MintAccountData []byte
	DailySpentQuote float64
}

// DailySpendTracker reports and records quote-denominated spend for the
// daily-cap check.
type DailySpendTracker interface {
	SpentToday() float64
}

// SellabilityProbe simulates a reverse quote to confirm the token can be
// sold before committing to a buy (spec §4.3 step 9).
type SellabilityProbe interface {
	CanSell(ctx context.Context, mint string) (bool, error)
}

// Gate runs the nine ordered checks from spec §4.3. Each check returns
// either nil (passed) or a BlockReason naming the failed check.
type Gate struct {
	thresholds Thresholds
	sources    []Source
	spend      DailySpendTracker
	sellable   SellabilityProbe
	paused     func() bool
}

// NewGate constructs a Gate.
func NewGate(t Thresholds, sources []Source, spend DailySpendTracker, sellable SellabilityProbe, paused func() bool) *Gate {
	return &Gate{thresholds: t, sources: sources, spend: spend, sellable: sellable, paused: paused}
}

// Evaluate runs all nine checks in spec §4.3's order and returns the first
// BlockReason encountered, or nil if the candidate passes every check.
func (g *Gate) Evaluate(ctx context.Context, c Candidate) error {
	// 1. pause-flag
	if g.paused != nil && g.paused() {
		return BlockReason{"pause_flag", "auto-pause active"}
	}

	// 2. score floor
	if c.Score < g.thresholds.MinScore {
		return BlockReason{"score", fmt.Sprintf("score %.2f below floor %.2f", c.Score, g.thresholds.MinScore)}
	}

	// 3. liquidity floor
	if c.LiquidityQuote < g.thresholds.MinLiquidityQuote {
		return BlockReason{"liquidity", fmt.Sprintf("liquidity %.4f below floor %.4f", c.LiquidityQuote, g.thresholds.MinLiquidityQuote)}
	}

	// 4. pool-age floor
	age := c.ObservedAt.Sub(c.PoolCreatedAt)
	if age < time.Duration(g.thresholds.MinPoolAgeSeconds)*time.Second {
		return BlockReason{"pool_age", fmt.Sprintf("pool age %s below floor", age)}
	}

	// 5. freshness ceiling
	if age > time.Duration(g.thresholds.MaxFreshnessSeconds)*time.Second {
		return BlockReason{"freshness", fmt.Sprintf("pool age %s exceeds freshness ceiling", age)}
	}

	// 6. token safety: mint/freeze authority. RequireMetadataImmutable is
	// not consulted; metadata update authority is not checked.
	mint, err := chain.ParseMintAccount(c.MintAccountData)
	if err != nil {
		// A malformed mint account fails the token-safety check.
		return BlockReason{"token_safety", "unparseable mint account"}
	}
	if g.thresholds.RequireMintRenounced && !chain.IsRenounced(mint.MintAuthority) {
		return BlockReason{"token_safety:mint_authority", "mint authority not renounced"}
	}
	if g.thresholds.RequireFreezeRenounced && !chain.IsRenounced(mint.FreezeAuthority) {
		return BlockReason{"token_safety:freeze_authority", "freeze authority not renounced"}
	}

	// 7. ownership/tax flags via external risk sources
	level, findings := EvaluateSources(ctx, g.sources, c.TokenMint)
	if level >= PolicyBlockedLevel {
		return BlockReason{"risk_sources", fmt.Sprintf("risk level %s: %v", level, findings)}
	}

	// 8. sellability probe
	if g.sellable != nil {
		ok, err := g.sellable.CanSell(ctx, c.TokenMint)
		if err != nil {
			log.Debug().Err(err).Msg("sellability probe unavailable, defaulting open")
		} else if !ok {
			return BlockReason{"sellability", "reverse quote failed"}
		}
	}

	// 9. daily-cap check
	if g.spend != nil && g.thresholds.DailyCapQuote > 0 {
		if g.spend.SpentToday() >= g.thresholds.DailyCapQuote {
			return BlockReason{"daily_cap", "daily spend cap reached"}
		}
	}

	return nil
}
