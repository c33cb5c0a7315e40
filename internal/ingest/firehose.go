package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raysnipe/sniper/internal/chain"
	"github.com/raysnipe/sniper/internal/classify"
)

// FirehoseConfig holds the websocket endpoint and venue program IDs to
// subscribe against.
type FirehoseConfig struct {
	WSURL            string
	ReconnectDelay   time.Duration
	PingInterval     time.Duration
	VenueProgramID   string // e.g. Raydium AMM v4, for new_pool/graduation log matching
	VenueName        string
	WhaleMentionAddr string // optional: a program/account ID to scope the raw firehose subscription
	ChannelCapacity  int
}

// DefaultFirehoseConfig fills in the spec's stated reconnect/ping defaults.
func DefaultFirehoseConfig() FirehoseConfig {
	return FirehoseConfig{
		ReconnectDelay:  time.Second,
		PingInterval:    30 * time.Second,
		ChannelCapacity: 4096,
	}
}

// PoolRegistrar receives a mint's pool address once the Ingestor resolves
// one from a new_pool/graduation log line, satisfied by
// chain.StaticPoolRegistry.
type PoolRegistrar interface {
	Register(mint, poolAddress, marketAddress string)
}

// Ingestor is the Firehose Ingestor: three logs-mentions subscriptions
// (venue program new_pool/graduation markers, KOL wallets, raw whale-buy
// logs) feeding classify.RawEvent onto one bounded channel (spec §2's
// single ingestion boundary, internally structured as described in
// SPEC_FULL.md's supplemented-features note).
type Ingestor struct {
	cfg       FirehoseConfig
	client    *Client
	rpc       *chain.RPCClient
	registrar PoolRegistrar

	raw chan classify.RawEvent

	mu        sync.Mutex
	kolWallets map[string]bool

	txCtx    context.Context
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewIngestor constructs an Ingestor. Start must be called to begin
// subscribing. rpc is used to recover account keys and balance deltas a
// bare logsSubscribe notification doesn't carry (see enrich); it may be
// nil, in which case venue/whale events are emitted log-only. registrar
// gets told about a pool as soon as its new_pool/graduation log line is
// resolved to an address; it may also be nil.
func NewIngestor(cfg FirehoseConfig, kolWallets []string, rpc *chain.RPCClient, registrar PoolRegistrar) *Ingestor {
	kw := make(map[string]bool, len(kolWallets))
	for _, w := range kolWallets {
		kw[w] = true
	}
	return &Ingestor{
		cfg:        cfg,
		client:     NewClient(cfg.WSURL, cfg.ReconnectDelay, cfg.PingInterval),
		rpc:        rpc,
		registrar:  registrar,
		raw:        make(chan classify.RawEvent, cfg.ChannelCapacity),
		kolWallets: kw,
		stopCh:     make(chan struct{}),
	}
}

// Events returns the bounded channel of raw observations for the Event
// Classifier to consume.
func (in *Ingestor) Events() <-chan classify.RawEvent {
	return in.raw
}

// Client exposes the underlying websocket client so a caller can share the
// connection with a WalletMonitor or PriceFeed instead of opening another.
func (in *Ingestor) Client() *Client {
	return in.client
}

// Start connects the underlying websocket client and subscribes to the
// venue's program logs (new_pool/graduation markers), the KOL wallets'
// mentioned transactions, and the raw whale-buy firehose (scoped to the
// same venue program unless WhaleMentionAddr overrides it). KOL wallets use
// a logs mentions filter rather than an account-data subscription so a buy
// carries a signature enrichAndEmit can resolve, the same as any other
// detected buy.
func (in *Ingestor) Start(ctx context.Context) error {
	in.txCtx = ctx
	in.client.SetCallbacks(
		func() { log.Info().Str("url", in.cfg.WSURL).Msg("ingestor websocket connected") },
		func(err error) { log.Warn().Err(err).Msg("ingestor websocket disconnected") },
	)

	if err := in.client.Connect(ctx); err != nil {
		return err
	}

	mentions := in.cfg.WhaleMentionAddr
	if mentions == "" {
		mentions = in.cfg.VenueProgramID
	}

	if _, err := in.client.LogsSubscribe(in.cfg.VenueProgramID, in.handleVenueLogs); err != nil {
		return err
	}
	if mentions != in.cfg.VenueProgramID {
		if _, err := in.client.LogsSubscribe(mentions, in.handleWhaleLogs); err != nil {
			return err
		}
	}

	in.mu.Lock()
	wallets := make([]string, 0, len(in.kolWallets))
	for w := range in.kolWallets {
		wallets = append(wallets, w)
	}
	in.mu.Unlock()
	for _, wallet := range wallets {
		if _, err := in.client.LogsSubscribe(wallet, in.handleWhaleLogs); err != nil {
			log.Warn().Err(err).Str("wallet", wallet).Msg("failed to subscribe KOL wallet")
		}
	}

	return nil
}

// Stop closes the underlying websocket and the raw events channel.
func (in *Ingestor) Stop() {
	in.stopOnce.Do(func() {
		close(in.stopCh)
		in.client.Close()
		close(in.raw)
	})
}

type logsNotification struct {
	Signature string   `json:"signature"`
	Err       interface{} `json:"err"`
	Logs      []string `json:"logs"`
}

type logsValue struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value logsNotification `json:"value"`
}

func (in *Ingestor) handleVenueLogs(data json.RawMessage) {
	var v logsValue
	if err := json.Unmarshal(data, &v); err != nil {
		log.Debug().Err(err).Msg("failed to parse venue logs notification")
		return
	}
	if v.Value.Err != nil {
		return
	}
	ev := classify.RawEvent{Signature: v.Value.Signature, Slot: v.Context.Slot, LogMessages: v.Value.Logs}
	go in.enrichAndEmit(ev)
}

func (in *Ingestor) handleWhaleLogs(data json.RawMessage) {
	var v logsValue
	if err := json.Unmarshal(data, &v); err != nil {
		log.Debug().Err(err).Msg("failed to parse whale logs notification")
		return
	}
	if v.Value.Err != nil {
		return
	}
	ev := classify.RawEvent{Signature: v.Value.Signature, Slot: v.Context.Slot, LogMessages: v.Value.Logs}
	go in.enrichAndEmit(ev)
}

// enrichAndEmit resolves the account keys and balance deltas a bare
// logsSubscribe notification omits by re-fetching the transaction, at the
// cost of one extra RPC round trip per candidate log line. Runs off the
// websocket read loop so a slow RPC call never stalls other subscriptions.
func (in *Ingestor) enrichAndEmit(ev classify.RawEvent) {
	if in.rpc == nil {
		in.emit(ev)
		return
	}
	ctx := in.txCtx
	if ctx == nil {
		ctx = context.Background()
	}
	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	tx, err := in.rpc.GetTransaction(fetchCtx, ev.Signature)
	cancel()
	if err != nil {
		log.Debug().Err(err).Str("sig", ev.Signature).Msg("failed to resolve transaction for venue/whale log")
		in.emit(ev)
		return
	}

	ev.AccountKeys = tx.AccountKeys
	ev.QuoteAmount = buyerLamportDelta(tx)
	if mint, ok := buyerTokenMint(tx); ok {
		ev.TokenMint = mint
	}

	if in.registrar != nil {
		if cand := classify.ClassifyNewPoolOrGraduation(ev, in.cfg.VenueName); cand != nil {
			if poolAddr, mint, ok := poolAccountsFromTx(tx, in.cfg.VenueProgramID); ok {
				ev.TokenMint = mint
				in.registrar.Register(mint, poolAddr, "")
			}
		}
	}

	in.emit(ev)
}

// emit pushes onto the bounded channel, dropping (with a log line) rather
// than blocking the websocket read loop when the classifier falls behind.
func (in *Ingestor) emit(ev classify.RawEvent) {
	select {
	case in.raw <- ev:
	default:
		log.Warn().Msg("raw events channel full, dropping observation")
	}
}
