package chain

import (
	"encoding/base64"
	"testing"

	"github.com/mr-tron/base58"
)

func TestEncodeShortVecSingleByte(t *testing.T) {
	if got := encodeShortVec(17); len(got) != 1 || got[0] != 17 {
		t.Fatalf("expected single byte 17, got %v", got)
	}
}

func TestEncodeShortVecMultiByte(t *testing.T) {
	got := encodeShortVec(300)
	if len(got) != 2 {
		t.Fatalf("expected 2 bytes for 300, got %v", got)
	}
	if got[0]&0x80 == 0 {
		t.Fatalf("expected continuation bit set on first byte, got %v", got)
	}
}

func TestCompileLegacyTransactionStructure(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	wallet, err := NewWallet(base58.Encode(seed))
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	builder := NewTransactionBuilder(wallet, nil, 0)

	blockhash := base58.Encode(make([]byte, 32))
	ix := Instruction{
		ProgramID: RaydiumAMMv4ProgramID,
		Accounts: []AccountMeta{
			{Pubkey: wallet.Address(), IsSigner: true, IsWritable: true},
		},
		Data: []byte{9, 1, 2, 3},
	}

	signedTxB64, err := builder.CompileLegacyTransaction([]Instruction{ix}, blockhash)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(signedTxB64)
	if err != nil {
		t.Fatalf("decode b64: %v", err)
	}
	if len(raw) < 1+64+3 {
		t.Fatalf("signed tx too short: %d bytes", len(raw))
	}
	if raw[0] != 1 {
		t.Fatalf("expected 1 signature, got sig count byte %d", raw[0])
	}
}
