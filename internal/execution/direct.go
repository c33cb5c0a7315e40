package execution

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/raysnipe/sniper/internal/chain"
	"github.com/raysnipe/sniper/internal/position"
	"github.com/raysnipe/sniper/internal/sizing"
)

// DirectExecutor implements Execution Path A: build the Raydium SwapBaseIn
// instruction ourselves, skipping the aggregator entirely for lower
// latency. Grounded on original_source/backend/src/raydium_direct.py and
// its ix_builder.py submodule.
type DirectExecutor struct {
	wallet      *chain.Wallet
	rpc         *chain.RPCClient
	txBuilder   *chain.TransactionBuilder
	pools       chain.PoolResolver
	slippageBps int
}

// NewDirectExecutor constructs a Path A executor.
func NewDirectExecutor(wallet *chain.Wallet, rpc *chain.RPCClient, txBuilder *chain.TransactionBuilder, pools chain.PoolResolver, slippageBps int) *DirectExecutor {
	return &DirectExecutor{wallet: wallet, rpc: rpc, txBuilder: txBuilder, pools: pools, slippageBps: slippageBps}
}

// minAmountOut applies the configured slippage tolerance to an AMM-math
// quoted output.
func (e *DirectExecutor) minAmountOut(quotedOut uint64) uint64 {
	return quotedOut * uint64(10000-e.slippageBps) / 10000
}

func (e *DirectExecutor) buildSwap(ctx context.Context, mint string, sellingToken bool, amountIn uint64) (chain.Instruction, uint64, error) {
	pool, market, err := e.pools.ResolvePool(ctx, mint)
	if err != nil {
		return chain.Instruction{}, 0, fmt.Errorf("resolve pool: %w", err)
	}

	ammAuthority, err := chain.DeriveAMMAuthority(pool.AMMID)
	if err != nil {
		return chain.Instruction{}, 0, fmt.Errorf("derive amm authority: %w", err)
	}
	vaultSigner, err := chain.DeriveVaultSigner(pool.MarketID, market.VaultSignerNonce)
	if err != nil {
		return chain.Instruction{}, 0, fmt.Errorf("derive vault signer: %w", err)
	}

	userSourceATA, err := chain.DeriveAssociatedTokenAddress(e.wallet.Address(), pool.QuoteMint)
	if err != nil {
		return chain.Instruction{}, 0, fmt.Errorf("derive source ata: %w", err)
	}
	userDestATA, err := chain.DeriveAssociatedTokenAddress(e.wallet.Address(), pool.BaseMint)
	if err != nil {
		return chain.Instruction{}, 0, fmt.Errorf("derive dest ata: %w", err)
	}

	reserveIn, reserveOut := pool.QuoteReserve, pool.BaseReserve
	if sellingToken {
		reserveIn, reserveOut = pool.BaseReserve, pool.QuoteReserve
		userSourceATA, userDestATA = userDestATA, userSourceATA
	}

	quotedOut := sizing.Out(amountIn, reserveIn, reserveOut)
	minOut := e.minAmountOut(quotedOut)

	ix := chain.BuildSwapInstruction(chain.SwapInstructionInputs{
		AMMID:            pool.AMMID,
		AMMAuthority:     ammAuthority,
		OpenOrders:       pool.OpenOrders,
		TargetOrders:     pool.TargetOrders,
		BaseVault:        pool.BaseVault,
		QuoteVault:       pool.QuoteVault,
		MarketID:         pool.MarketID,
		Bids:             market.Bids,
		Asks:             market.Asks,
		EventQueue:       market.EventQueue,
		MarketBaseVault:  market.BaseVault,
		MarketQuoteVault: market.QuoteVault,
		VaultSigner:      vaultSigner,
		UserSourceATA:    userSourceATA,
		UserDestATA:      userDestATA,
		UserWallet:       e.wallet.Address(),
	}, amountIn, minOut)

	return ix, quotedOut, nil
}

// Buy sends amountLamports of quote (SOL) directly into mint's Raydium pool.
func (e *DirectExecutor) Buy(ctx context.Context, mint string, amountLamports uint64) (*BuyResult, error) {
	ix, quotedOut, err := e.buildSwap(ctx, mint, false, amountLamports)
	if err != nil {
		return nil, err
	}
	return e.send(ctx, ix, amountLamports, quotedOut)
}

// SellAll implements position.Seller by selling the entire wallet token
// balance for mint directly against its Raydium pool.
func (e *DirectExecutor) SellAll(ctx context.Context, p *position.Position) (string, float64, error) {
	return e.sell(ctx, p, 1.0)
}

// SellFraction implements position.Seller for partial take-profit exits.
func (e *DirectExecutor) SellFraction(ctx context.Context, p *position.Position, fraction float64) (string, float64, error) {
	return e.sell(ctx, p, fraction)
}

func (e *DirectExecutor) sell(ctx context.Context, p *position.Position, fraction float64) (string, float64, error) {
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

	ix, quotedOut, err := e.buildSwap(ctx, snap.TokenMint, true, sellAmount)
	if err != nil {
		return "", 0, err
	}
	result, err := e.send(ctx, ix, sellAmount, quotedOut)
	if err != nil {
		return "", 0, err
	}
	execPrice := 0.0
	if sellAmount > 0 {
		execPrice = float64(quotedOut) / float64(sellAmount)
	}
	return result.Signature, execPrice, nil
}

func (e *DirectExecutor) send(ctx context.Context, ix chain.Instruction, amountIn, quotedOut uint64) (*BuyResult, error) {
	blockhash, err := e.txBuilder.GetRecentBlockhash()
	if err != nil {
		return nil, fmt.Errorf("get blockhash: %w", err)
	}

	setLimit, setPrice := e.txBuilder.BuildComputeBudgetInstructions()
	computeIxs := []chain.Instruction{
		{ProgramID: chain.ComputeBudgetProgramID, Data: setLimit},
		{ProgramID: chain.ComputeBudgetProgramID, Data: setPrice},
	}
	instructions := append(computeIxs, ix)

	signedTx, err := e.txBuilder.CompileLegacyTransaction(instructions, blockhash)
	if err != nil {
		return nil, fmt.Errorf("compile transaction: %w", err)
	}

	sig, err := e.rpc.SendTransaction(ctx, signedTx, true)
	if err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	log.Info().Str("signature", sig).Uint64("amountIn", amountIn).Uint64("quotedOut", quotedOut).Msg("direct swap sent")

	execPrice := 0.0
	if quotedOut > 0 {
		execPrice = float64(amountIn) / float64(quotedOut)
	}
	return &BuyResult{Signature: sig, ExecutionPrice: execPrice}, nil
}
