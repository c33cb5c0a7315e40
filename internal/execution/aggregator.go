// Package execution implements the dual-path trade executor: Path A sends a
// hand-built Raydium swap instruction directly, Path B routes through
// Jupiter's aggregator. Both satisfy position.Seller so the Position Manager
// can flatten a position without knowing which path opened it.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raysnipe/sniper/internal/chain"
	"github.com/raysnipe/sniper/internal/jupiter"
	"github.com/raysnipe/sniper/internal/position"
)

// BuyResult is what a successful entry returns to the caller (the sizing
// engine's decision has already been applied by the time Buy is called).
type BuyResult struct {
	Signature      string
	ExecutionPrice float64
	AmountTokens   float64
}

// AggregatorExecutor implements Execution Path B: Jupiter quote, co-sign the
// returned serialized transaction, send with skip-preflight for speed.
// Grounded on the teacher's executor_fast.go "send first" philosophy and
// jupiter/client.go's existing quote/swap calls.
type AggregatorExecutor struct {
	wallet    *chain.Wallet
	rpc       *chain.RPCClient
	jupiter   *jupiter.Client
	txBuilder *chain.TransactionBuilder

	mu            sync.Mutex
	recentMints   map[string]time.Time
	dedupWindow   time.Duration
	maxRetries    int
}

// NewAggregatorExecutor constructs a Path B executor.
func NewAggregatorExecutor(wallet *chain.Wallet, rpc *chain.RPCClient, jupiterClient *jupiter.Client, txBuilder *chain.TransactionBuilder) *AggregatorExecutor {
	return &AggregatorExecutor{
		wallet:      wallet,
		rpc:         rpc,
		jupiter:     jupiterClient,
		txBuilder:   txBuilder,
		recentMints: make(map[string]time.Time),
		dedupWindow: 3 * time.Second,
		maxRetries:  2,
	}
}

// dedupe returns true if mint was bought within the dedup window, guarding
// against a duplicate candidate firing twice for the same token.
func (e *AggregatorExecutor) dedupe(mint string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.recentMints[mint]; ok && time.Since(last) < e.dedupWindow {
		return true
	}
	e.recentMints[mint] = time.Now()
	return false
}

// Buy routes amountLamports of SOL into mint via Jupiter and sends the
// resulting signed transaction with retries on transient RPC errors.
func (e *AggregatorExecutor) Buy(ctx context.Context, mint string, amountLamports uint64) (*BuyResult, error) {
	if e.dedupe(mint) {
		return nil, fmt.Errorf("duplicate buy suppressed for %s", mint)
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		swapTx, err := e.jupiter.GetSwapTransaction(ctx, jupiter.SOLMint, mint, e.wallet.Address(), amountLamports)
		if err != nil {
			lastErr = err
			continue
		}
		signedTx, err := e.txBuilder.SignSerializedTransaction(swapTx)
		if err != nil {
			return nil, fmt.Errorf("sign swap tx: %w", err)
		}
		sig, err := e.rpc.SendTransaction(ctx, signedTx, true)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Str("mint", mint).Msg("aggregator buy send failed, retrying")
			continue
		}
		quote, err := e.jupiter.GetQuote(ctx, jupiter.SOLMint, mint, amountLamports)
		execPrice := 0.0
		if err == nil {
			var outAmt float64
			fmt.Sscanf(quote.OutAmount, "%f", &outAmt)
			if outAmt > 0 {
				execPrice = float64(amountLamports) / outAmt
			}
		}
		return &BuyResult{Signature: sig, ExecutionPrice: execPrice}, nil
	}
	return nil, fmt.Errorf("aggregator buy failed after %d attempts: %w", e.maxRetries+1, lastErr)
}

// SellAll implements position.Seller by querying the wallet's full token
// balance and routing it to SOL via Jupiter.
func (e *AggregatorExecutor) SellAll(ctx context.Context, p *position.Position) (string, float64, error) {
	return e.sell(ctx, p, 1.0)
}

// SellFraction implements position.Seller for partial take-profit exits.
func (e *AggregatorExecutor) SellFraction(ctx context.Context, p *position.Position, fraction float64) (string, float64, error) {
	return e.sell(ctx, p, fraction)
}

func (e *AggregatorExecutor) sell(ctx context.Context, p *position.Position, fraction float64) (string, float64, error) {
	snap := p.Snapshot()
	accounts, err := e.rpc.GetTokenAccountsByOwner(ctx, e.wallet.Address(), snap.TokenMint)
	if err != nil || len(accounts) == 0 {
		return "", 0, fmt.Errorf("no token account for %s: %w", snap.TokenMint, err)
	}
	balance, _, err := e.rpc.GetTokenAccountBalance(ctx, accounts[0].Address)
	if err != nil {
		return "", 0, fmt.Errorf("token balance: %w", err)
	}

	sellAmount := uint64(float64(balance) * fraction)
	if sellAmount == 0 {
		return "", 0, fmt.Errorf("zero sell amount for %s", snap.TokenMint)
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		swapTx, err := e.jupiter.GetSwapTransaction(ctx, snap.TokenMint, jupiter.SOLMint, e.wallet.Address(), sellAmount)
		if err != nil {
			lastErr = err
			continue
		}
		signedTx, err := e.txBuilder.SignSerializedTransaction(swapTx)
		if err != nil {
			return "", 0, fmt.Errorf("sign sell tx: %w", err)
		}
		sig, err := e.rpc.SendTransaction(ctx, signedTx, true)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Str("mint", snap.TokenMint).Msg("aggregator sell send failed, retrying")
			continue
		}
		quote, err := e.jupiter.GetQuote(ctx, snap.TokenMint, jupiter.SOLMint, sellAmount)
		execPrice := snap.CurrentPrice
		if err == nil {
			var outAmt float64
			fmt.Sscanf(quote.OutAmount, "%f", &outAmt)
			if sellAmount > 0 {
				execPrice = outAmt / float64(sellAmount)
			}
		}
		return sig, execPrice, nil
	}
	return "", 0, fmt.Errorf("aggregator sell failed after %d attempts: %w", e.maxRetries+1, lastErr)
}
