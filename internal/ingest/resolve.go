package ingest

import "github.com/raysnipe/sniper/internal/chain"

// wrappedSOLMint is Solana's canonical wrapped-SOL mint; token balance
// deltas against it don't count as a "buy" of anything.
const wrappedSOLMint = "So11111111111111111111111111111111111111112"

// poolAccountsFromTx recovers the pool address and base token mint an
// initialize2/InitializeInstruction2 log line belongs to, by finding the
// venue program's instruction in the confirmed transaction and reading its
// account list by the venue's fixed account ordering. Grounded on
// original_source's geyser_watcher.py _build_pool_event, which does the
// same accounts[0]/accounts[8] lookup for a Raydium pool-creation
// instruction.
func poolAccountsFromTx(tx *chain.TransactionDetail, venueProgramID string) (poolAddress, tokenMint string, ok bool) {
	for _, ix := range tx.Instructions {
		if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(tx.AccountKeys) {
			continue
		}
		if tx.AccountKeys[ix.ProgramIDIndex] != venueProgramID {
			continue
		}
		accounts := make([]string, 0, len(ix.Accounts))
		for _, idx := range ix.Accounts {
			if idx >= 0 && idx < len(tx.AccountKeys) {
				accounts = append(accounts, tx.AccountKeys[idx])
			}
		}
		if len(accounts) > 8 {
			return accounts[0], accounts[8], true
		}
	}
	return "", "", false
}

// buyerLamportDelta returns (pre-post)/1e9 for the account at index 0 (the
// fee payer, per spec's buyer convention), clamped to zero. A positive
// delta means that account spent SOL in this transaction.
func buyerLamportDelta(tx *chain.TransactionDetail) float64 {
	if len(tx.PreBalances) == 0 || len(tx.PostBalances) == 0 {
		return 0
	}
	diff := (float64(tx.PreBalances[0]) - float64(tx.PostBalances[0])) / 1e9
	if diff < 0 {
		return 0
	}
	return diff
}

// buyerTokenMint finds the mint the buyer's (account index 0) token balance
// increased for in this transaction, i.e. what they bought. Grounded on
// original_source's kol_watcher.py _parse_buy, which walks
// postTokenBalances for an increase over preTokenBalances for the same
// owner and mint.
func buyerTokenMint(tx *chain.TransactionDetail) (mint string, ok bool) {
	if len(tx.AccountKeys) == 0 {
		return "", false
	}
	buyer := tx.AccountKeys[0]
	pre := make(map[string]float64, len(tx.PreTokenBalances))
	for _, b := range tx.PreTokenBalances {
		if b.Owner == buyer {
			pre[b.Mint] = b.UIAmount
		}
	}
	for _, b := range tx.PostTokenBalances {
		if b.Owner != buyer || b.Mint == wrappedSOLMint {
			continue
		}
		if b.UIAmount > pre[b.Mint] {
			return b.Mint, true
		}
	}
	return "", false
}
