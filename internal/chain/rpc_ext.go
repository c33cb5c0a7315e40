package chain

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
)

// GetAccountInfo fetches raw account data, base64-decoded, for layout
// parsing (ParseRaydiumPool, ParseMarketAccount, ParseMintAccount).
func (c *RPCClient) GetAccountInfo(ctx context.Context, pubkey string) ([]byte, error) {
	req := RPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getAccountInfo",
		Params: []interface{}{
			pubkey,
			map[string]string{"encoding": "base64", "commitment": "confirmed"},
		},
	}

	var result struct {
		Value *struct {
			Data []string `json:"data"`
		} `json:"value"`
	}

	if err := c.call(ctx, req, &result); err != nil {
		return nil, err
	}
	if result.Value == nil || len(result.Value.Data) == 0 {
		return nil, fmt.Errorf("account %s not found", pubkey)
	}

	return base64.StdEncoding.DecodeString(result.Value.Data[0])
}

// TokenBalanceEntry is one entry of getTransaction's meta.{pre,post}TokenBalances.
type TokenBalanceEntry struct {
	AccountIndex int
	Mint         string
	Owner        string
	UIAmount     float64
}

// CompiledInstruction is one entry of a transaction message's instruction
// list, accounts given as indices into TransactionDetail.AccountKeys.
type CompiledInstruction struct {
	ProgramIDIndex int
	Accounts       []int
}

// TransactionDetail is the subset of getTransaction's response the Firehose
// Ingestor needs to recover what a bare logsSubscribe notification can't
// carry: the account keys and instruction accounts of the transaction a
// detected log line belongs to, plus lamport/token balance deltas for
// sizing a buy. Grounded on original_source's geyser_watcher.py and
// kol_watcher.py, which both re-fetch or locally decode the full
// transaction for exactly this reason.
type TransactionDetail struct {
	Slot              uint64
	AccountKeys       []string
	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalanceEntry
	PostTokenBalances []TokenBalanceEntry
	Instructions      []CompiledInstruction
}

// GetTransaction fetches a confirmed transaction by signature, decoded with
// json encoding so instruction accounts and balances arrive as plain
// indices rather than base64/base58 wire bytes.
func (c *RPCClient) GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error) {
	req := RPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTransaction",
		Params: []interface{}{
			signature,
			map[string]interface{}{
				"encoding":                       "json",
				"commitment":                     "confirmed",
				"maxSupportedTransactionVersion": 0,
			},
		},
	}

	var result struct {
		Slot        uint64 `json:"slot"`
		Transaction struct {
			Message struct {
				AccountKeys  []string `json:"accountKeys"`
				Instructions []struct {
					ProgramIDIndex int   `json:"programIdIndex"`
					Accounts       []int `json:"accounts"`
				} `json:"instructions"`
			} `json:"message"`
		} `json:"transaction"`
		Meta struct {
			PreBalances       []uint64 `json:"preBalances"`
			PostBalances      []uint64 `json:"postBalances"`
			PreTokenBalances  []struct {
				AccountIndex int    `json:"accountIndex"`
				Mint         string `json:"mint"`
				Owner        string `json:"owner"`
				UITokenAmount struct {
					UIAmount float64 `json:"uiAmount"`
				} `json:"uiTokenAmount"`
			} `json:"preTokenBalances"`
			PostTokenBalances []struct {
				AccountIndex int    `json:"accountIndex"`
				Mint         string `json:"mint"`
				Owner        string `json:"owner"`
				UITokenAmount struct {
					UIAmount float64 `json:"uiAmount"`
				} `json:"uiTokenAmount"`
			} `json:"postTokenBalances"`
		} `json:"meta"`
	}

	if err := c.call(ctx, req, &result); err != nil {
		return nil, err
	}
	if len(result.Transaction.Message.AccountKeys) == 0 {
		return nil, fmt.Errorf("transaction %s not found", signature)
	}

	detail := &TransactionDetail{
		Slot:         result.Slot,
		AccountKeys:  result.Transaction.Message.AccountKeys,
		PreBalances:  result.Meta.PreBalances,
		PostBalances: result.Meta.PostBalances,
	}
	for _, ix := range result.Transaction.Message.Instructions {
		detail.Instructions = append(detail.Instructions, CompiledInstruction{
			ProgramIDIndex: ix.ProgramIDIndex,
			Accounts:       ix.Accounts,
		})
	}
	for _, b := range result.Meta.PreTokenBalances {
		detail.PreTokenBalances = append(detail.PreTokenBalances, TokenBalanceEntry{
			AccountIndex: b.AccountIndex, Mint: b.Mint, Owner: b.Owner, UIAmount: b.UITokenAmount.UIAmount,
		})
	}
	for _, b := range result.Meta.PostTokenBalances {
		detail.PostTokenBalances = append(detail.PostTokenBalances, TokenBalanceEntry{
			AccountIndex: b.AccountIndex, Mint: b.Mint, Owner: b.Owner, UIAmount: b.UITokenAmount.UIAmount,
		})
	}
	return detail, nil
}

// GetAllTokenAccounts fetches the owner's token accounts under the legacy
// SPL Token program in one call. Token-2022 accounts are not included.
func (c *RPCClient) GetAllTokenAccounts(ctx context.Context, owner string) ([]TokenAccountInfo, error) {
	req := RPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTokenAccountsByOwner",
		Params: []interface{}{
			owner,
			map[string]string{"programId": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"},
			map[string]string{
				"encoding": "jsonParsed",
			},
		},
	}

	var result struct {
		Value []struct {
			Pubkey  string `json:"pubkey"`
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								Amount   string `json:"amount"`
								Decimals uint8  `json:"decimals"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}

	if err := c.call(ctx, req, &result); err != nil {
		return nil, err
	}

	accounts := make([]TokenAccountInfo, 0, len(result.Value))
	for _, v := range result.Value {
		amount, _ := strconv.ParseUint(v.Account.Data.Parsed.Info.TokenAmount.Amount, 10, 64)
		accounts = append(accounts, TokenAccountInfo{
			Address:  v.Pubkey,
			Mint:     v.Account.Data.Parsed.Info.Mint,
			Amount:   amount,
			Decimals: v.Account.Data.Parsed.Info.TokenAmount.Decimals,
		})
	}

	return accounts, nil
}
