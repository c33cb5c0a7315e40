// Command sniper is the supervisor binary: it wires the firehose ingestor,
// event classifier, risk gate, sizing engine, dual-path executor, position
// manager, fee tuner, auto-pause manager, and control API together and
// runs them until terminated.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/raysnipe/sniper/internal/autopause"
	"github.com/raysnipe/sniper/internal/chain"
	"github.com/raysnipe/sniper/internal/classify"
	"github.com/raysnipe/sniper/internal/config"
	"github.com/raysnipe/sniper/internal/controlapi"
	"github.com/raysnipe/sniper/internal/execution"
	"github.com/raysnipe/sniper/internal/health"
	"github.com/raysnipe/sniper/internal/ingest"
	"github.com/raysnipe/sniper/internal/jupiter"
	"github.com/raysnipe/sniper/internal/metrics"
	"github.com/raysnipe/sniper/internal/poolcache"
	"github.com/raysnipe/sniper/internal/position"
	"github.com/raysnipe/sniper/internal/risk"
	"github.com/raysnipe/sniper/internal/risk/sources"
	"github.com/raysnipe/sniper/internal/sizing"
	"github.com/raysnipe/sniper/internal/store"
	"github.com/raysnipe/sniper/internal/tuner"
)

// wrappedSOLMint is Solana's canonical wrapped-SOL mint, used as the quote
// side of every reverse-quote sellability probe.
const wrappedSOLMint = "So11111111111111111111111111111111111111112"

func main() {
	setupLogger()
	log.Info().Msg("sniper engine starting")

	cfg, err := config.NewManager("config/config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	wallet, err := loadWallet(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load wallet")
	}
	log.Info().Str("address", wallet.Address()).Msg("wallet loaded")

	rpc := chain.NewRPCClient(cfg.GetShyftRPCURL(), cfg.GetFallbackRPCURL(), cfg.GetShyftAPIKey())

	blockhashCache := chain.NewBlockhashCache(
		rpc,
		cfg.GetBlockhashRefresh(),
		time.Duration(cfg.Get().Blockchain.BlockhashTTLSeconds)*time.Second,
	)
	if err := blockhashCache.Start(); err != nil {
		log.Error().Err(err).Msg("failed to start blockhash cache")
	}
	defer blockhashCache.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	balanceTracker := chain.NewBalanceTracker(wallet, rpc)
	if err := balanceTracker.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial balance refresh failed")
	}
	log.Info().Float64("balance_sol", balanceTracker.BalanceSOL()).Msg("wallet balance")

	feeTuner := tuner.New(buildTunerConfig(cfg.GetTuner()))
	txBuilder := chain.NewTransactionBuilder(wallet, blockhashCache, feeTuner.CurrentFee())

	jupCfg := cfg.Get().Jupiter
	jupiterClient := jupiter.NewClient(jupCfg.QuoteAPIURL, jupCfg.SlippageBps, time.Duration(jupCfg.TimeoutSeconds)*time.Second)

	poolRegistry := chain.NewStaticPoolRegistry()
	poolFetcher := chain.NewRPCPoolFetcher(rpc, poolRegistry)
	pools := poolcache.New(poolcache.DefaultConfig(), poolFetcher)

	direct := execution.NewDirectExecutor(wallet, rpc, txBuilder, pools, jupCfg.SlippageBps)
	aggregator := execution.NewAggregatorExecutor(wallet, rpc, jupiterClient, txBuilder)
	router := execution.NewRouter(direct, aggregator, true)

	db, err := store.NewDB(cfg.Get().Storage.SQLitePath)
	if err != nil {
		log.Error().Err(err).Msg("failed to open audit database")
	}

	autoPauseCfg := buildAutoPauseConfig(cfg.GetAutoPause())
	pauseMgr := autopause.New(rpc, wallet.Address(), autoPauseCfg,
		func(reason, details string) {
			log.Warn().Str("reason", reason).Str("details", details).Msg("trading paused")
		},
		func(trigger string) {
			log.Info().Str("trigger", trigger).Msg("trading resumed")
		})
	go func() {
		if err := pauseMgr.WatchFlags(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("flag watcher stopped")
		}
	}()

	spend := newSpendTracker()
	sellable := &jupiterSellabilityProbe{client: jupiterClient}
	gate := risk.NewGate(buildThresholds(cfg.GetRisk()), buildRiskSources(cfg.GetRisk()), spend, sellable, func() bool {
		allowed, _ := pauseMgr.IsTradingAllowed()
		return !allowed
	})

	classifier := classify.NewClassifier(buildClassifierConfig(cfg.GetClassifier()))

	metricsRegistry := metrics.NewRegistry()
	rpc.SetLatencySink(metricsRegistry)

	closeTracker := newCloseAccounting(db, metricsRegistry)
	positions := position.NewManager(buildExitConfig(cfg.GetExit()), jupiterClient, router, "./data/positions.jsonl", closeTracker.onExit)
	positions.Start(ctx)
	defer positions.Stop()

	telegramCfg := cfg.Get().Telegram
	healthChecker := health.NewChecker(rpc, fmt.Sprintf("http://%s:%d/health", telegramCfg.ListenHost, telegramCfg.ListenPort))
	healthChecker.Start(ctx)

	controlServer := controlapi.NewServer(telegramCfg.ListenHost, telegramCfg.ListenPort, controlapi.Deps{
		Positions: positions,
		AutoPause: pauseMgr,
		Tuner:     feeTuner,
		Metrics:   metricsRegistry,
		Health:    healthChecker,
	})
	go func() {
		if err := controlServer.Start(); err != nil {
			log.Error().Err(err).Msg("control API stopped")
		}
	}()
	defer controlServer.Shutdown()

	eval := &evaluator{
		rpc:       rpc,
		pools:     pools,
		gate:      gate,
		sizing:    buildSizingParams(cfg.GetSizing()),
		router:    router,
		positions: positions,
		spend:     spend,
		db:        db,
		metrics:   metricsRegistry,
		balance:   balanceTracker,
		feeBuffer: autoPauseCfg.MinSOLBalanceLamports,
		firstSeen: make(map[string]time.Time),
	}
	// A pool's address is only learned once the Ingestor resolves a
	// new_pool/graduation log line into one (one extra getTransaction round
	// trip per candidate line, paid once per mint rather than on every
	// subsequent log). Registration is the resulting signal that a mint is
	// now evaluable; a coordinated/whale/KOL buy cluster on an
	// already-known mint can trigger the same evaluation path, so both
	// triggers share classifier's MarkEmitted gate to keep evaluate()
	// one-shot per mint regardless of which signal got there first.
	poolRegistry.OnRegister(func(mint string) {
		if classifier.MarkEmitted(mint) {
			go eval.evaluate(ctx, mint)
		}
	})

	firehoseCfg := ingest.DefaultFirehoseConfig()
	firehoseCfg.WSURL = cfg.GetShyftWSURL()
	firehoseCfg.VenueProgramID = chain.RaydiumAMMv4ProgramID
	firehoseCfg.VenueName = "raydium"
	kolWallets := cfg.GetClassifier().KOLWallets
	ingestor := ingest.NewIngestor(firehoseCfg, kolWallets, rpc, poolRegistry)
	if err := ingestor.Start(ctx); err != nil {
		log.Error().Err(err).Msg("ingestor failed to start")
	}
	defer ingestor.Stop()

	walletMonitor := ingest.NewWalletMonitor(ingestor.Client(), wallet.Address())
	if err := walletMonitor.StartWalletSubscription(); err != nil {
		log.Warn().Err(err).Msg("wallet balance subscription failed")
	}
	walletMonitor.OnBalanceUpdate(func(u ingest.BalanceUpdate) {
		// The push already carries the new lamport figure, so apply it
		// directly rather than paying a redundant getBalance round trip.
		balanceTracker.SetBalance(u.Lamports)
	})
	eval.walletMonitor = walletMonitor

	priceFeed := ingest.NewPriceFeed(ingestor.Client(), wallet.Address())
	priceFeed.OnPriceUpdate(func(u ingest.PriceUpdate) {
		pools.Invalidate(u.Mint)
	})
	eval.priceFeed = priceFeed
	poolRegistry.OnRegister(func(mint string) {
		if poolAddr, _, ok := poolRegistry.ResolveAddresses(mint); ok {
			if err := priceFeed.TrackToken(mint, poolAddr); err != nil {
				log.Debug().Err(err).Str("mint", mint).Msg("failed to subscribe pool price feed")
			}
		}
	})

	mints := newMintClassifiers(buildClassifierConfig(cfg.GetClassifier()))
	go watchFirehose(ctx, ingestor, classifier, mints, eval, db)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
}

func setupLogger() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "1" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func loadWallet(cfg *config.Manager) (*chain.Wallet, error) {
	if key := cfg.GetPrivateKey(); key != "" {
		return chain.NewWallet(key)
	}
	keyManager := chain.NewHotWalletCache("./data", 10*time.Minute, nil)
	wallet, err := keyManager.GetOrGenerate()
	if err != nil {
		return nil, err
	}
	log.Warn().Str("address", wallet.Address()).Msg("using auto-generated wallet, fund it to trade")
	return wallet, nil
}

func buildTunerConfig(tc config.TunerConfig) tuner.Config {
	cfg := tuner.DefaultConfig()
	if tc.BaseFeeLamports > 0 {
		cfg.BaseFeeMicroLamports = tc.BaseFeeLamports
	}
	if tc.MaxFeeLamports > 0 {
		cfg.MaxFeeMicroLamports = tc.MaxFeeLamports
	}
	if tc.RecentOutcomesWindow > 0 {
		cfg.RecentOutcomesWindow = tc.RecentOutcomesWindow
	}
	if tc.CongestionMultiplierCeiling > 0 {
		cfg.CriticalCongestionMultiplier = tc.CongestionMultiplierCeiling
	}
	return cfg
}

func buildAutoPauseConfig(c config.AutoPauseConfig) autopause.Config {
	d := autopause.DefaultConfig()
	if c.FlagDir != "" {
		d.FlagDir = c.FlagDir
	}
	if c.ConsecutiveFailTrip > 0 {
		d.MaxConsecutiveFailures = c.ConsecutiveFailTrip
	}
	if c.DrawdownPctTrip > 0 {
		d.DrawdownPctTrip = c.DrawdownPctTrip
	}
	if c.MaxFailuresPerHour > 0 {
		d.MaxFailuresPerHour = c.MaxFailuresPerHour
	}
	if c.MinSOLBalanceLamports > 0 {
		d.MinSOLBalanceLamports = c.MinSOLBalanceLamports
	}
	if c.CriticalSOLBalanceLamports > 0 {
		d.CriticalSOLBalanceLamports = c.CriticalSOLBalanceLamports
	}
	if c.FailurePauseDurationSeconds > 0 {
		d.FailurePauseDuration = time.Duration(c.FailurePauseDurationSeconds) * time.Second
	}
	if c.BalanceCheckIntervalSeconds > 0 {
		d.BalanceCheckInterval = time.Duration(c.BalanceCheckIntervalSeconds) * time.Second
	}
	if c.AutoResumeAfterSeconds > 0 {
		d.AutoResumeAfter = time.Duration(c.AutoResumeAfterSeconds) * time.Second
	}
	d.RequireManualResumeOnCritical = c.RequireManualResumeOnCritical
	return d
}

func buildThresholds(c config.RiskConfig) risk.Thresholds {
	t := risk.DefaultThresholds()
	t.MinScore = c.MinScore
	t.MinLiquidityQuote = c.MinLiquidityQuote
	if c.MinPoolAgeSeconds > 0 {
		t.MinPoolAgeSeconds = c.MinPoolAgeSeconds
	}
	if c.MaxFreshnessSeconds > 0 {
		t.MaxFreshnessSeconds = c.MaxFreshnessSeconds
	}
	t.RequireMintRenounced = c.RequireMintRenounced
	t.RequireFreezeRenounced = c.RequireFreezeRenounced
	t.DailyCapQuote = c.DailyCapQuote
	return t
}

func buildSizingParams(c config.SizingConfig) sizing.Params {
	p := sizing.DefaultParams()
	if c.TargetImpactBps > 0 {
		p.TargetImpactBps = c.TargetImpactBps
	}
	if c.MaxImpactBps > 0 {
		p.MaxImpactBps = c.MaxImpactBps
	}
	if c.MaxLiquidityPct > 0 {
		p.MaxLiquidityPct = c.MaxLiquidityPct
	}
	if c.RoundTripHardLimitBps > 0 {
		p.RoundTripHardLimitBps = c.RoundTripHardLimitBps
	}
	if c.MaxRoundTripBps > 0 {
		p.MaxRoundTripBps = c.MaxRoundTripBps
	}
	p.MinBuyLamports = c.MinBuyLamports
	return p
}

func buildClassifierConfig(c config.ClassifierConfig) classify.Config {
	cfg := classify.DefaultConfig()
	if c.SlotWindow > 0 {
		cfg.SlotWindow = c.SlotWindow
	}
	if c.MinCoordinatedBuyers > 0 {
		cfg.MinCoordinatedBuyers = c.MinCoordinatedBuyers
	}
	if c.WhaleQuoteThreshold > 0 {
		cfg.WhaleQuoteThreshold = c.WhaleQuoteThreshold
	}
	for _, w := range c.KOLWallets {
		cfg.KOLWallets[w] = true
	}
	return cfg
}

func buildExitConfig(c config.ExitConfig) position.ExitConfig {
	cfg := position.DefaultExitConfig()
	if c.TakeProfitPct > 0 {
		cfg.TakeProfitPct = c.TakeProfitPct
	}
	if c.PartialTakeProfitAtPct > 0 {
		cfg.PartialTakeProfitAtPct = c.PartialTakeProfitAtPct
	}
	if c.PartialTakeProfitPct > 0 {
		cfg.PartialTakeProfitPct = c.PartialTakeProfitPct
	}
	if c.StopLossPct > 0 {
		cfg.StopLossPct = c.StopLossPct
	}
	if c.TrailingStopPct > 0 {
		cfg.TrailingStopPct = c.TrailingStopPct
	}
	if c.TrailingActivationPct > 0 {
		cfg.TrailingActivationPct = c.TrailingActivationPct
	}
	if c.BreakevenArmPct > 0 {
		cfg.BreakevenArmPct = c.BreakevenArmPct
	}
	if c.BreakevenFeeBufferPct > 0 {
		cfg.BreakevenFeeBufferPct = c.BreakevenFeeBufferPct
	}
	if c.MaxHoldMinutes > 0 {
		cfg.MaxHoldMinutes = c.MaxHoldMinutes
	}
	if c.RugDropPct > 0 {
		cfg.RugDropPct = c.RugDropPct
	}
	return cfg
}

// buildRiskSources wires every best-effort external risk adapter the pack's
// original_source/backend/src/risk_sources.py folds through max_risk.
func buildRiskSources(cfg config.RiskConfig) []risk.Source {
	var out []risk.Source
	out = append(out, sources.NewPumpFunSource("https://frontend-api.pump.fun"))
	if key := os.Getenv(cfg.BirdeyeAPIKeyEnv); key != "" {
		out = append(out, sources.NewBirdeyeSource("https://public-api.birdeye.so", key))
	}
	if key := os.Getenv(cfg.TokenSnifferAPIKeyEnv); key != "" {
		out = append(out, sources.NewTokenSnifferSource("https://tokensniffer.com/api/v2", key))
	}
	out = append(out, sources.NewRugCheckSource("https://api.rugcheck.xyz/v1"))
	out = append(out, sources.NewGoPlusSource("https://api.gopluslabs.io/api/v1"))
	out = append(out, sources.NewRugDocSource("https://rugdoc.io/api", cfg.RugDocEnabled))
	return out
}

// jupiterSellabilityProbe implements risk.SellabilityProbe by quoting a
// small reverse trade (mint -> wrapped SOL) through the aggregator; a failed
// reverse quote means the token cannot currently be sold.
type jupiterSellabilityProbe struct {
	client *jupiter.Client
}

func (p *jupiterSellabilityProbe) CanSell(ctx context.Context, mint string) (bool, error) {
	const probeAmount = 1_000 // smallest representative unit, not the real position size
	if _, err := p.client.GetQuote(ctx, mint, wrappedSOLMint, probeAmount); err != nil {
		return false, err
	}
	return true, nil
}

// spendTracker is an in-memory, daily-resetting risk.DailySpendTracker.
type spendTracker struct {
	mu         sync.Mutex
	day        int
	spentQuote float64
}

func newSpendTracker() *spendTracker {
	return &spendTracker{day: time.Now().YearDay()}
}

func (s *spendTracker) SpentToday() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked()
	return s.spentQuote
}

func (s *spendTracker) Add(amountQuote float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked()
	s.spentQuote += amountQuote
}

func (s *spendTracker) rolloverLocked() {
	today := time.Now().YearDay()
	if today != s.day {
		s.day = today
		s.spentQuote = 0
	}
}

// closeAccounting persists a closed position as a trade row and feeds the
// Prometheus registry, wired as position.Manager's ExitCallback.
type closeAccounting struct {
	db      *store.DB
	metrics *metrics.Registry
}

func newCloseAccounting(db *store.DB, m *metrics.Registry) *closeAccounting {
	return &closeAccounting{db: db, metrics: m}
}

func (c *closeAccounting) onExit(p *position.Position) {
	snap := p.Snapshot()
	c.metrics.RealizedPnLQuote.Add(snap.RealizedPnLQuote)
	outcome := "loss"
	if snap.RealizedPnLQuote >= 0 {
		outcome = "win"
	}
	c.metrics.TradesTotal.WithLabelValues("sell", outcome).Inc()
	if c.db == nil {
		return
	}
	if err := c.db.InsertTrade(&store.Trade{
		Mint:       snap.TokenMint,
		TokenName:  snap.Symbol,
		Side:       "SELL",
		EntryValue: snap.EntryAmountQuote,
		ExitValue:  snap.ExitPrice * snap.EntryAmountTokens,
		PnL:        snap.RealizedPnLQuote,
		Duration:   int64(snap.ExitTime.Sub(snap.EntryTime).Seconds()),
		ExitReason: string(snap.ExitReason),
		EntryTxSig: snap.EntrySignature,
		ExitTxSig:  snap.ExitSignature,
		Timestamp:  store.Now(),
	}); err != nil {
		log.Error().Err(err).Str("mint", snap.TokenMint).Msg("failed to record closed trade")
	}
}

// evaluator runs a resolved mint through the risk gate, sizing engine, and
// router, opening a position on success.
type evaluator struct {
	rpc           *chain.RPCClient
	pools         *poolcache.Cache
	gate          *risk.Gate
	sizing        sizing.Params
	router        *execution.Router
	positions     *position.Manager
	spend         *spendTracker
	db            *store.DB
	metrics       *metrics.Registry
	walletMonitor *ingest.WalletMonitor
	priceFeed     *ingest.PriceFeed
	balance       *chain.BalanceTracker
	feeBuffer     uint64

	mu        sync.Mutex
	firstSeen map[string]time.Time
}

func (e *evaluator) evaluate(ctx context.Context, mint string) {
	timer := metrics.NewTradeTimer()

	pool, market, err := e.pools.ResolvePool(ctx, mint)
	if err != nil {
		log.Debug().Err(err).Str("mint", mint).Msg("pool resolution failed")
		return
	}
	timer.MarkParseDone()

	e.mu.Lock()
	createdAt, known := e.firstSeen[mint]
	if !known {
		createdAt = time.Now()
		e.firstSeen[mint] = createdAt
	}
	e.mu.Unlock()

	mintData, err := e.rpc.GetAccountInfo(ctx, pool.BaseMint)
	if err != nil {
		log.Debug().Err(err).Str("mint", mint).Msg("mint account fetch failed")
		return
	}

	cand := risk.Candidate{
		TokenMint:       mint,
		Score:           1.0,
		LiquidityQuote:  float64(pool.QuoteReserve) / 1e9,
		PoolCreatedAt:   createdAt,
		ObservedAt:      time.Now(),
		MintAccountData: mintData,
		DailySpentQuote: e.spend.SpentToday(),
	}

	if err := e.gate.Evaluate(ctx, cand); err != nil {
		var reason risk.BlockReason
		if errors.As(err, &reason) {
			e.metrics.RiskBlocksTotal.WithLabelValues(reason.Check).Inc()
			if e.db != nil {
				_ = e.db.InsertRiskBlock(mint, reason.Check, reason.Detail, store.Now())
			}
			log.Info().Str("mint", mint).Str("check", reason.Check).Msg("candidate blocked by risk gate")
		}
		return
	}
	timer.MarkResolveDone()

	result := sizing.Size(pool.QuoteReserve, pool.BaseReserve, e.sizing)
	if !result.Dropped {
		result = sizing.RoundTripGate(result.AmountLamports, pool.QuoteReserve, pool.BaseReserve, e.sizing, e.sizing.MinBuyLamports)
	}
	if result.Dropped {
		log.Info().Str("mint", mint).Str("reason", result.DropReason).Msg("candidate dropped by sizing engine")
		return
	}
	if e.balance != nil && !e.balance.HasSufficientBalance(result.AmountLamports, e.feeBuffer) {
		log.Info().Str("mint", mint).Uint64("wantLamports", result.AmountLamports).Msg("candidate dropped, insufficient wallet balance")
		return
	}
	timer.MarkQuoteDone()

	timer.MarkSignDone()
	res, path, err := e.router.Buy(ctx, mint, result.AmountLamports)
	if err != nil {
		log.Error().Err(err).Str("mint", mint).Msg("buy failed")
		e.metrics.TradesTotal.WithLabelValues("buy", "error").Inc()
		return
	}
	timer.MarkSendDone()

	if e.walletMonitor != nil {
		if err := e.walletMonitor.WaitForConfirmation(res.Signature, func(c ingest.TxConfirmation) {
			if !c.Confirmed {
				log.Warn().Str("mint", mint).Str("sig", res.Signature).Str("error", c.Error).Msg("buy landed but failed on-chain")
			}
		}); err != nil {
			log.Debug().Err(err).Str("sig", res.Signature).Msg("failed to subscribe to buy confirmation")
		}
	}

	e.spend.Add(float64(result.AmountLamports) / 1e9)
	e.metrics.TradesTotal.WithLabelValues("buy", "ok").Inc()
	parse, resolve, quote, sign, send := timer.GetBreakdown()
	log.Debug().Str("mint", mint).Int64("parse_ms", parse).Int64("resolve_ms", resolve).
		Int64("quote_ms", quote).Int64("sign_ms", sign).Int64("send_ms", send).Msg("trade latency breakdown")
	e.metrics.ObserveTradeLatency(path, time.Duration(timer.TotalMs())*time.Millisecond)

	if e.priceFeed != nil {
		e.priceFeed.SetPrice(mint, res.ExecutionPrice)
	}

	pos := &position.Position{
		ID:                uuid.NewString(),
		TokenMint:         mint,
		EntrySignature:    res.Signature,
		EntryTime:         time.Now(),
		EntryPriceQuote:   res.ExecutionPrice,
		EntryAmountQuote:  float64(result.AmountLamports) / 1e9,
		EntryAmountTokens: res.AmountTokens,
		Source:            path,
		SourceDetails:     market.MarketID,
	}
	e.positions.Add(pos)

	if e.db != nil {
		_ = e.db.InsertPosition(&store.Position{
			Mint:       mint,
			EntryValue: pos.EntryAmountQuote,
			EntryUnit:  "SOL",
			EntryTime:  store.Now(),
			EntryTxSig: res.Signature,
		})
	}

	log.Info().Str("mint", mint).Str("path", path).Str("sig", res.Signature).
		Uint64("amount_lamports", result.AmountLamports).Msg("position opened")
}

// mintClassifiers hands out one classify.Classifier per token mint for the
// slot-windowed buy accumulator (ObserveBuy/AdvanceSlot), matching
// Classifier's own documented ownership model: one Classifier's buffer
// holds one token's buys. The shared Classifier passed into watchFirehose
// still owns the cross-mint signature dedup and the emitted-once gate.
type mintClassifiers struct {
	mu  sync.Mutex
	cfg classify.Config
	m   map[string]*mintClassifierState
}

type mintClassifierState struct {
	classifier *classify.Classifier
	seq        int
}

func newMintClassifiers(cfg classify.Config) *mintClassifiers {
	return &mintClassifiers{cfg: cfg, m: make(map[string]*mintClassifierState)}
}

// next returns the per-mint Classifier and the next deterministic
// within-slot event index for it.
func (mc *mintClassifiers) next(mint string) (*classify.Classifier, int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	st, ok := mc.m[mint]
	if !ok {
		st = &mintClassifierState{classifier: classify.NewClassifier(mc.cfg)}
		mc.m[mint] = st
	}
	idx := st.seq
	st.seq++
	return st.classifier, idx
}

// watchFirehose consumes raw firehose observations: new_pool/graduation log
// lines are logged and audited (pool registration itself, and the
// resulting evaluate() trigger, happen inside the Ingestor and its
// OnRegister callback); buy observations are run through the Event
// Classifier's coordinated/whale/KOL-buy detectors, and any candidate that
// clears the Classifier's once-per-mint gate drives the same evaluate()
// path a pool registration would.
func watchFirehose(ctx context.Context, in *ingest.Ingestor, classifier *classify.Classifier, mints *mintClassifiers, eval *evaluator, db *store.DB) {
	emit := func(cand *classify.Candidate) {
		log.Info().Str("type", string(cand.Type)).Str("mint", cand.TokenMint).
			Float64("confidence", cand.Confidence).Msg("buy signal observed")
		if db != nil {
			_ = db.InsertSignal(&store.Signal{
				TokenName:  cand.TokenMint,
				SignalType: string(cand.Type),
				Timestamp:  store.Now(),
			})
		}
		if cand.TokenMint != "" && classifier.MarkEmitted(cand.TokenMint) {
			go eval.evaluate(ctx, cand.TokenMint)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in.Events():
			if !ok {
				return
			}
			if classifier.Dedup(ev.Signature) {
				continue
			}
			if cand := classify.ClassifyNewPoolOrGraduation(ev, "raydium"); cand != nil {
				log.Info().Str("type", string(cand.Type)).Str("sig", cand.Signature).Msg("venue event observed")
				if db != nil {
					_ = db.InsertSignal(&store.Signal{
						TokenName:  ev.TokenMint,
						SignalType: string(cand.Type),
						Timestamp:  store.Now(),
					})
				}
				continue
			}
			if ev.TokenMint == "" {
				continue
			}
			if kol := classifier.KOLBuy(ev, ev.TokenMint); kol != nil {
				emit(kol)
				continue
			}
			mintClassifier, idx := mints.next(ev.TokenMint)
			if cand := mintClassifier.ObserveBuy(ev.TokenMint, ev, idx); cand != nil {
				emit(cand)
				continue
			}
			for _, cand := range mintClassifier.AdvanceSlot(ev.TokenMint, ev.Slot) {
				emit(cand)
			}
		}
	}
}
