package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/raysnipe/sniper/internal/chain"
	"github.com/raysnipe/sniper/internal/config"
	"github.com/raysnipe/sniper/internal/jupiter"
)

const wrappedSOLMint = "So11111111111111111111111111111111111111112"

// testMint is BONK, used for its liquidity depth.
const testMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

func main() {
	log.Logger = zerolog.New(
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"},
	).With().Timestamp().Logger()

	fmt.Println("SPEED TEST: simulating buy trade latency")
	fmt.Println(strings.Repeat("=", 50))

	cfg, err := config.NewManager("config/config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	totalStart := time.Now()
	timings := make(map[string]time.Duration)

	step1Start := time.Now()
	wallet, err := chain.NewWallet(cfg.GetPrivateKey())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load wallet")
	}
	timings["1_wallet_load"] = time.Since(step1Start)
	fmt.Printf("wallet: %s\n", wallet.Address())

	step2Start := time.Now()
	rpc := chain.NewRPCClient(cfg.GetShyftRPCURL(), cfg.GetFallbackRPCURL(), cfg.GetShyftAPIKey())
	timings["2_rpc_init"] = time.Since(step2Start)

	step3Start := time.Now()
	ctx := context.Background()
	balance, err := rpc.GetBalance(ctx, wallet.Address())
	if err != nil {
		log.Warn().Err(err).Msg("balance check failed")
	}
	timings["3_balance_check"] = time.Since(step3Start)
	fmt.Printf("balance: %.6f SOL\n", float64(balance)/1e9)

	step4Start := time.Now()
	blockhashCache := chain.NewBlockhashCache(rpc, 100*time.Millisecond, 90*time.Second)
	if err := blockhashCache.Start(); err != nil {
		log.Fatal().Err(err).Msg("blockhash cache failed")
	}
	defer blockhashCache.Stop()
	timings["4_blockhash_init"] = time.Since(step4Start)

	step5Start := time.Now()
	jupCfg := cfg.Get().Jupiter
	jupiterClient := jupiter.NewClient(jupCfg.QuoteAPIURL, jupCfg.SlippageBps, time.Duration(jupCfg.TimeoutSeconds)*time.Second)
	timings["5_jupiter_init"] = time.Since(step5Start)

	time.Sleep(200 * time.Millisecond)

	fmt.Println("\n--- TRADE SIMULATION ---")

	tradeStart := time.Now()

	step6Start := time.Now()
	amountLamports := uint64(10_000_000) // 0.01 SOL test amount
	swapTx, err := jupiterClient.GetSwapTransaction(ctx, wrappedSOLMint, testMint, wallet.Address(), amountLamports)
	if err != nil {
		log.Error().Err(err).Msg("jupiter swap failed")
		fmt.Printf("jupiter error (may be insufficient balance): %v\n", err)
	} else {
		timings["6_jupiter_swap"] = time.Since(step6Start)
		fmt.Printf("jupiter TX received (%d bytes)\n", len(swapTx))
	}

	step7Start := time.Now()
	blockhash, err := blockhashCache.Get()
	if err != nil {
		log.Error().Err(err).Msg("blockhash failed")
	}
	timings["7_blockhash_get"] = time.Since(step7Start)
	fmt.Printf("blockhash: %s...\n", blockhash[:16])

	step8Start := time.Now()
	if swapTx != "" {
		txBytes, _ := base64.StdEncoding.DecodeString(swapTx)
		if len(txBytes) > 0 {
			_ = wallet.Sign(txBytes[:64]) // measure sign overhead only
		}
	}
	timings["8_tx_sign"] = time.Since(step8Start)
	fmt.Println("TX signed (simulation)")

	step9Start := time.Now()
	// measure RPC round-trip latency via a balance query instead of an actual send
	_, _ = rpc.GetBalance(ctx, wallet.Address())
	timings["9_rpc_latency"] = time.Since(step9Start)
	fmt.Println("RPC send latency measured")

	tradeLatency := time.Since(tradeStart)
	totalLatency := time.Since(totalStart)

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("LATENCY BREAKDOWN")
	fmt.Println(strings.Repeat("=", 50))

	for name, dur := range timings {
		fmt.Printf("  %-20s %6dms\n", name, dur.Milliseconds())
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("  %-20s %6dms\n", "TRADE SIMULATION", tradeLatency.Milliseconds())
	fmt.Printf("  %-20s %6dms\n", "TOTAL", totalLatency.Milliseconds())
	fmt.Println(strings.Repeat("=", 50))

	fmt.Println("\nSUMMARY")
	if timings["6_jupiter_swap"] > 0 {
		jupiterMs := timings["6_jupiter_swap"].Milliseconds()
		rpcMs := timings["9_rpc_latency"].Milliseconds()
		signMs := timings["8_tx_sign"].Milliseconds()
		blockhashMs := timings["7_blockhash_get"].Milliseconds()

		estimatedTradeMs := jupiterMs + signMs + rpcMs + blockhashMs
		fmt.Printf("  estimated real trade latency: %dms\n", estimatedTradeMs)
		fmt.Printf("  jupiter API: %dms\n", jupiterMs)
		fmt.Printf("  RPC latency: %dms\n", rpcMs)
		fmt.Printf("  sign + blockhash: %dms\n", signMs+blockhashMs)
	}

	fmt.Println("\nspeed test complete")
}
