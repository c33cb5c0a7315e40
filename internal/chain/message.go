package chain

import (
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/mr-tron/base58"
)

// accountEntry tracks the union of signer/writable flags an account key
// accumulates across every instruction it appears in.
type accountEntry struct {
	pubkey   string
	isSigner bool
	writable bool
}

// CompileLegacyTransaction builds a single-signer legacy Solana transaction
// from raw instructions: account key ordering (writable signers, readonly
// signers, writable non-signers, readonly non-signers), shortvec-encoded
// compact arrays, and the wire header/body layout, matching the manual
// byte-level transaction handling already used in SignSerializedTransaction
// for Jupiter's versioned transactions. Returns the base64-encoded signed
// transaction ready for RPCClient.SendTransaction.
func (b *TransactionBuilder) CompileLegacyTransaction(instructions []Instruction, recentBlockhash string) (string, error) {
	payer := b.wallet.Address()

	entries := map[string]*accountEntry{}
	order := []string{}
	upsert := func(pubkey string, signer, writable bool) {
		e, ok := entries[pubkey]
		if !ok {
			e = &accountEntry{pubkey: pubkey}
			entries[pubkey] = e
			order = append(order, pubkey)
		}
		if signer {
			e.isSigner = true
		}
		if writable {
			e.writable = true
		}
	}

	upsert(payer, true, true)
	for _, ix := range instructions {
		upsert(ix.ProgramID, false, false)
		for _, am := range ix.Accounts {
			upsert(am.Pubkey, am.IsSigner, am.IsWritable)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, c := entries[order[i]], entries[order[j]]
		if a.pubkey == payer {
			return true
		}
		if c.pubkey == payer {
			return false
		}
		if a.isSigner != c.isSigner {
			return a.isSigner
		}
		if a.writable != c.writable {
			return a.writable
		}
		return false
	})

	index := make(map[string]int, len(order))
	for i, k := range order {
		index[k] = i
	}

	numSigners, numReadonlySigned, numReadonlyUnsigned := 0, 0, 0
	for _, k := range order {
		e := entries[k]
		if e.isSigner {
			numSigners++
			if !e.writable {
				numReadonlySigned++
			}
		} else if !e.writable {
			numReadonlyUnsigned++
		}
	}

	blockhashBytes, err := base58.Decode(recentBlockhash)
	if err != nil || len(blockhashBytes) != 32 {
		return "", fmt.Errorf("invalid recent blockhash: %w", err)
	}

	var msg []byte
	msg = append(msg, byte(numSigners), byte(numReadonlySigned), byte(numReadonlyUnsigned))
	msg = append(msg, encodeShortVec(len(order))...)
	for _, k := range order {
		decoded, err := base58.Decode(k)
		if err != nil || len(decoded) != 32 {
			return "", fmt.Errorf("invalid account key %s: %w", k, err)
		}
		msg = append(msg, decoded...)
	}
	msg = append(msg, blockhashBytes...)

	msg = append(msg, encodeShortVec(len(instructions))...)
	for _, ix := range instructions {
		msg = append(msg, byte(index[ix.ProgramID]))
		msg = append(msg, encodeShortVec(len(ix.Accounts))...)
		for _, am := range ix.Accounts {
			msg = append(msg, byte(index[am.Pubkey]))
		}
		msg = append(msg, encodeShortVec(len(ix.Data))...)
		msg = append(msg, ix.Data...)
	}

	signature := b.wallet.Sign(msg)
	signed := make([]byte, 0, 1+64+len(msg))
	signed = append(signed, 1)
	signed = append(signed, signature...)
	signed = append(signed, msg...)

	return base64.StdEncoding.EncodeToString(signed), nil
}

// encodeShortVec encodes n using Solana's compact-u16 ("shortvec") format:
// 7 bits per byte, MSB as the continuation flag.
func encodeShortVec(n int) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}
