package position

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ExitConfig holds the tunable thresholds evaluated by CheckExitConditions.
// Defaults are grounded on original_source/backend/src/position_manager.py's
// ExitConfig.from_env().
type ExitConfig struct {
	TakeProfitPct          float64
	EnablePartialTP        bool
	PartialTakeProfitAtPct float64
	PartialTakeProfitPct   float64

	StopLossPct float64

	EnableTrailingStop      bool
	TrailingStopPct         float64
	TrailingActivationPct   float64

	EnableBreakeven    bool
	BreakevenArmPct    float64
	BreakevenFeeBufferPct float64

	EnableTimeExit  bool
	MaxHoldMinutes  int

	EnableRugProtection bool
	RugDropPct          float64

	PricePollInterval time.Duration
}

// DefaultExitConfig matches the numeric defaults in spec.md §4.6 and
// original_source's ExitConfig.from_env().
func DefaultExitConfig() ExitConfig {
	return ExitConfig{
		TakeProfitPct:          75.0,
		EnablePartialTP:        true,
		PartialTakeProfitAtPct: 50.0,
		PartialTakeProfitPct:   50.0,
		StopLossPct:            15.0,
		EnableTrailingStop:     true,
		TrailingStopPct:        10.0,
		TrailingActivationPct:  20.0,
		EnableBreakeven:        true,
		BreakevenArmPct:        5.0,
		BreakevenFeeBufferPct:  1.0,
		EnableTimeExit:         true,
		MaxHoldMinutes:         60,
		EnableRugProtection:    true,
		RugDropPct:             35.0,
		PricePollInterval:      5 * time.Second,
	}
}

// ExitDecision is the outcome of evaluating a position's exit predicates.
type ExitDecision struct {
	Terminal bool
	Reason   ExitReason
	// Partial is set when a non-terminal mutation happened (partial TP,
	// breakeven arm) without closing the position.
	PartialSellFraction float64
}

// CheckExitConditions evaluates the exit predicates in the exact order spec
// §4.6 and SPEC_FULL.md §4.6 specify: rug -> stop-loss -> partial take-profit
// -> take-profit -> breakeven-arm -> trailing-stop arm/ratchet/fire -> time exit.
func CheckExitConditions(p *Position, cfg ExitConfig) ExitDecision {
	pnl := p.PnLPct()

	if cfg.EnableRugProtection && pnl <= -cfg.RugDropPct {
		return ExitDecision{Terminal: true, Reason: ExitRugDetected}
	}

	if pnl <= -cfg.StopLossPct {
		return ExitDecision{Terminal: true, Reason: ExitStopLoss}
	}

	if cfg.EnablePartialTP && !p.HasTakenPartial() && pnl >= cfg.PartialTakeProfitAtPct {
		p.MarkPartialTakeProfit()
		return ExitDecision{Terminal: false, PartialSellFraction: cfg.PartialTakeProfitPct / 100.0}
	}

	if pnl >= cfg.TakeProfitPct {
		return ExitDecision{Terminal: true, Reason: ExitTakeProfit}
	}

	if cfg.EnableBreakeven && pnl >= cfg.BreakevenArmPct {
		floor := p.Snapshot().EntryPriceQuote * (1 + cfg.BreakevenFeeBufferPct/100.0)
		p.ArmBreakeven(floor)
	}

	if cfg.EnableTrailingStop {
		snap := p.Snapshot()
		if !snap.TrailingActive && pnl >= cfg.TrailingActivationPct {
			p.ArmTrailingStop(snap.CurrentPrice * (1 - cfg.TrailingStopPct/100.0))
		} else if snap.TrailingActive {
			candidate := snap.HighestPrice * (1 - cfg.TrailingStopPct/100.0)
			p.RatchetTrailingStop(candidate)
		}
	}

	if floor := p.EffectiveStopFloor(); floor > 0 && p.Snapshot().CurrentPrice <= floor {
		return ExitDecision{Terminal: true, Reason: ExitTrailing}
	}

	if cfg.EnableTimeExit && p.HoldDuration() >= time.Duration(cfg.MaxHoldMinutes)*time.Minute {
		return ExitDecision{Terminal: true, Reason: ExitTimeExit}
	}

	return ExitDecision{}
}

// PriceSource fetches the current quote-denominated price of a token mint.
// Implemented by internal/jupiter (aggregator). The Manager holds a single
// source; when a batch fails, or a mint has no price in it, those positions
// are skipped for that poll and evaluated again on the next one.
type PriceSource interface {
	BatchPrices(ctx context.Context, mints []string) (map[string]float64, error)
}

// Seller executes the full-amount close of a position. Implemented by
// internal/execution.
type Seller interface {
	SellAll(ctx context.Context, p *Position) (signature string, execPrice float64, err error)
	SellFraction(ctx context.Context, p *Position, fraction float64) (signature string, execPrice float64, err error)
}

// ExitCallback is invoked exactly once per position close.
type ExitCallback func(p *Position)

// Manager is the exclusive owner of all open positions.
type Manager struct {
	mu        sync.RWMutex
	positions map[string]*Position

	cfg      ExitConfig
	prices   PriceSource
	seller   Seller
	onExit   ExitCallback
	filePath string

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewManager constructs a Manager and loads any persisted positions from
// filePath (JSON-lines, one Position per line — spec §6).
func NewManager(cfg ExitConfig, prices PriceSource, seller Seller, filePath string, onExit ExitCallback) *Manager {
	m := &Manager{
		positions: make(map[string]*Position),
		cfg:       cfg,
		prices:    prices,
		seller:    seller,
		onExit:    onExit,
		filePath:  filePath,
		stopCh:    make(chan struct{}),
	}
	if err := m.load(); err != nil {
		log.Warn().Err(err).Msg("positions: failed to load persisted state")
	}
	return m
}

// Start spawns the polling loop (spec §4.6: one loop, price_poll_seconds interval).
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.monitorLoop(ctx)
}

// Stop signals the polling loop to exit after at most one more iteration and
// persists final state.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()
	if err := m.save(); err != nil {
		log.Error().Err(err).Msg("positions: failed to persist on shutdown")
	}
}

func (m *Manager) monitorLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.PricePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkAll(ctx)
		}
	}
}

func (m *Manager) checkAll(ctx context.Context) {
	open := m.openPositions()
	if len(open) == 0 {
		return
	}

	mints := make([]string, 0, len(open))
	seen := make(map[string]bool)
	for _, p := range open {
		mint := p.Snapshot().TokenMint
		if !seen[mint] {
			seen[mint] = true
			mints = append(mints, mint)
		}
	}

	// Batch in groups of <=30 per call, per spec §4.6.
	const batchSize = 30
	prices := make(map[string]float64, len(mints))
	for i := 0; i < len(mints); i += batchSize {
		end := i + batchSize
		if end > len(mints) {
			end = len(mints)
		}
		batch, err := m.prices.BatchPrices(ctx, mints[i:end])
		if err != nil {
			log.Warn().Err(err).Msg("positions: price fetch failed")
			continue
		}
		for k, v := range batch {
			prices[k] = v
		}
	}

	for _, p := range open {
		mint := p.Snapshot().TokenMint
		price, ok := prices[mint]
		if !ok || price <= 0 {
			continue
		}
		p.UpdatePrice(price)

		decision := CheckExitConditions(p, m.cfg)
		if decision.PartialSellFraction > 0 {
			sig, execPrice, err := m.seller.SellFraction(ctx, p, decision.PartialSellFraction)
			if err != nil {
				log.Error().Err(err).Str("mint", mint).Msg("partial take-profit sell failed")
			} else {
				log.Info().Str("mint", mint).Str("sig", sig).Float64("execPrice", execPrice).
					Msg("partial take-profit executed")
			}
			continue
		}
		if decision.Terminal {
			m.closeOne(ctx, p, decision.Reason)
		}
	}

	_ = m.save()
}

func (m *Manager) closeOne(ctx context.Context, p *Position, reason ExitReason) {
	sig, execPrice, err := m.seller.SellAll(ctx, p)
	if err != nil {
		log.Error().Err(err).Str("mint", p.Snapshot().TokenMint).Str("reason", string(reason)).
			Msg("position close sell failed")
		return
	}
	if p.Close(reason, sig, execPrice, time.Now()) {
		m.mu.Lock()
		delete(m.positions, p.ID)
		m.mu.Unlock()
		if m.onExit != nil {
			m.onExit(p)
		}
	}
}

// Add registers a new open position.
func (m *Manager) Add(p *Position) {
	m.mu.Lock()
	m.positions[p.ID] = p
	m.mu.Unlock()
	_ = m.save()
}

// ClosePosition manually closes a position by ID (spec §4.6 close_position).
func (m *Manager) ClosePosition(ctx context.Context, id string, reason ExitReason) error {
	m.mu.RLock()
	p, ok := m.positions[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("position %s not found", id)
	}
	m.closeOne(ctx, p, reason)
	return nil
}

// FlattenAll manually closes every open position (spec §4.6 flatten_all).
func (m *Manager) FlattenAll(ctx context.Context) {
	for _, p := range m.openPositions() {
		m.closeOne(ctx, p, ExitManual)
	}
}

func (m *Manager) openPositions() []*Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out
}

// ListOpen returns a snapshot of all currently open positions, for the
// control API.
func (m *Manager) ListOpen() []*Position {
	return m.openPositions()
}

// Count returns the number of currently open positions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// Get returns an open position by ID, or nil.
func (m *Manager) Get(id string) *Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions[id]
}

// persistedRecord is the JSON-lines-on-disk shape.
type persistedRecord struct {
	ID                string     `json:"id"`
	TokenMint         string     `json:"token_mint"`
	Symbol            string     `json:"symbol"`
	EntrySignature    string     `json:"entry_signature"`
	EntrySlot         uint64     `json:"entry_slot"`
	EntryTime         time.Time  `json:"entry_time"`
	EntryPriceQuote   float64    `json:"entry_price_quote"`
	EntryAmountQuote  float64    `json:"entry_amount_quote"`
	EntryAmountTokens float64    `json:"entry_amount_tokens"`
	Source            string     `json:"source"`
	SourceDetails      string    `json:"source_details"`
	CurrentPrice       float64   `json:"current_price"`
	HighestPrice       float64   `json:"highest_price"`
	LowestPrice        float64   `json:"lowest_price"`
	TrailingActive     bool      `json:"trailing_active"`
	TrailingStopPrice  float64   `json:"trailing_stop_price"`
}

func (m *Manager) save() error {
	if m.filePath == "" {
		return nil
	}
	tmp := m.filePath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, p := range m.openPositions() {
		s := p.Snapshot()
		rec := persistedRecord{
			ID: s.ID, TokenMint: s.TokenMint, Symbol: s.Symbol,
			EntrySignature: s.EntrySignature, EntrySlot: s.EntrySlot, EntryTime: s.EntryTime,
			EntryPriceQuote: s.EntryPriceQuote, EntryAmountQuote: s.EntryAmountQuote,
			EntryAmountTokens: s.EntryAmountTokens, Source: s.Source, SourceDetails: s.SourceDetails,
			CurrentPrice: s.CurrentPrice, HighestPrice: s.HighestPrice, LowestPrice: s.LowestPrice,
			TrailingActive: s.TrailingActive, TrailingStopPrice: s.TrailingStopPrice,
		}
		b, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		w.Write(b)
		w.WriteString("\n")
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, m.filePath)
}

func (m *Manager) load() error {
	if m.filePath == "" {
		return nil
	}
	f, err := os.Open(m.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		var rec persistedRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			log.Warn().Err(err).Msg("positions: skipping malformed persisted record")
			continue
		}
		p := &Position{
			ID: rec.ID, TokenMint: rec.TokenMint, Symbol: rec.Symbol,
			EntrySignature: rec.EntrySignature, EntrySlot: rec.EntrySlot, EntryTime: rec.EntryTime,
			EntryPriceQuote: rec.EntryPriceQuote, EntryAmountQuote: rec.EntryAmountQuote,
			EntryAmountTokens: rec.EntryAmountTokens, Source: rec.Source, SourceDetails: rec.SourceDetails,
			CurrentPrice: rec.CurrentPrice, HighestPrice: rec.HighestPrice, LowestPrice: rec.LowestPrice,
			TrailingActive: rec.TrailingActive, TrailingStopPrice: rec.TrailingStopPrice,
		}
		m.positions[p.ID] = p
	}
	log.Info().Int("count", len(m.positions)).Msg("positions: loaded from disk")
	return scanner.Err()
}
