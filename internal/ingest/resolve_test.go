package ingest

import (
	"testing"

	"github.com/raysnipe/sniper/internal/chain"
)

const venueProgramID = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

func newPoolCreationTx() *chain.TransactionDetail {
	accounts := make([]string, 10)
	for i := range accounts {
		accounts[i] = "acct" + string(rune('A'+i))
	}
	accounts[0] = "pool111"
	accounts[8] = "mint111"
	accounts = append(accounts, venueProgramID)

	return &chain.TransactionDetail{
		AccountKeys: accounts,
		Instructions: []chain.CompiledInstruction{
			{ProgramIDIndex: 10, Accounts: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		},
	}
}

func TestPoolAccountsFromTx(t *testing.T) {
	tx := newPoolCreationTx()

	pool, mint, ok := poolAccountsFromTx(tx, venueProgramID)
	if !ok {
		t.Fatal("expected a resolved pool/mint pair")
	}
	if pool != "pool111" || mint != "mint111" {
		t.Fatalf("expected pool=pool111 mint=mint111, got pool=%s mint=%s", pool, mint)
	}
}

func TestPoolAccountsFromTxNoMatchingInstruction(t *testing.T) {
	tx := &chain.TransactionDetail{
		AccountKeys:  []string{"a", "b", "other-program"},
		Instructions: []chain.CompiledInstruction{{ProgramIDIndex: 2, Accounts: []int{0, 1}}},
	}

	if _, _, ok := poolAccountsFromTx(tx, venueProgramID); ok {
		t.Fatal("expected no match against an unrelated program")
	}
}

func TestBuyerLamportDelta(t *testing.T) {
	tx := &chain.TransactionDetail{
		PreBalances:  []uint64{2_000_000_000},
		PostBalances: []uint64{1_500_000_000},
	}
	if got := buyerLamportDelta(tx); got < 0.4999 || got > 0.5001 {
		t.Fatalf("expected ~0.5 SOL spent, got %v", got)
	}
}

func TestBuyerLamportDeltaClampsNegative(t *testing.T) {
	tx := &chain.TransactionDetail{
		PreBalances:  []uint64{1_000_000_000},
		PostBalances: []uint64{1_200_000_000},
	}
	if got := buyerLamportDelta(tx); got != 0 {
		t.Fatalf("expected a balance increase to clamp to 0, got %v", got)
	}
}

func TestBuyerTokenMint(t *testing.T) {
	tx := &chain.TransactionDetail{
		AccountKeys: []string{"buyer1"},
		PreTokenBalances: []chain.TokenBalanceEntry{
			{Owner: "buyer1", Mint: "mint111", UIAmount: 0},
		},
		PostTokenBalances: []chain.TokenBalanceEntry{
			{Owner: "buyer1", Mint: "mint111", UIAmount: 1000},
			{Owner: "buyer1", Mint: wrappedSOLMint, UIAmount: 0.4},
		},
	}

	mint, ok := buyerTokenMint(tx)
	if !ok || mint != "mint111" {
		t.Fatalf("expected mint111, got mint=%s ok=%v", mint, ok)
	}
}

func TestBuyerTokenMintIgnoresWrappedSOL(t *testing.T) {
	tx := &chain.TransactionDetail{
		AccountKeys: []string{"buyer1"},
		PostTokenBalances: []chain.TokenBalanceEntry{
			{Owner: "buyer1", Mint: wrappedSOLMint, UIAmount: 1.0},
		},
	}

	if _, ok := buyerTokenMint(tx); ok {
		t.Fatal("expected no mint resolved when only wrapped SOL increased")
	}
}
