package chain

import (
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
)

func TestMintAccountRoundTrip(t *testing.T) {
	auth := "B62RkfV9t5fZ8tGoiv4XwzhD9CJ9NwYmzJ6ASB6yGjZ7"
	m, err := ParseMintAccount(buildMintBytesSafe(&auth, nil))
	if err != nil {
		t.Fatal(err)
	}
	if m.MintAuthority == nil || *m.MintAuthority != auth {
		t.Fatalf("expected mint authority %s, got %+v", auth, m.MintAuthority)
	}
	if m.FreezeAuthority != nil {
		t.Fatalf("expected no freeze authority, got %v", *m.FreezeAuthority)
	}
	if IsRenounced(m.MintAuthority) {
		t.Fatal("authority set to a real key must not be considered renounced")
	}
	if !IsRenounced(m.FreezeAuthority) {
		t.Fatal("nil authority must be considered renounced")
	}
}

func TestMintAccountBurnedAuthorityIsRenounced(t *testing.T) {
	burned := "1nc1nerator11111111111111111111111111111111"
	m, err := ParseMintAccount(buildMintBytesSafe(&burned, &burned))
	if err != nil {
		t.Fatal(err)
	}
	if !IsRenounced(m.MintAuthority) || !IsRenounced(m.FreezeAuthority) {
		t.Fatal("burned authority address must be considered renounced")
	}
}

func TestParseMintAccountRejectsShortData(t *testing.T) {
	if _, err := ParseMintAccount(make([]byte, 10)); err != ErrInvalidMintAccount {
		t.Fatalf("expected ErrInvalidMintAccount, got %v", err)
	}
}

func TestSwapInstructionAccountOrdering(t *testing.T) {
	in := SwapInstructionInputs{
		AMMID: "amm", AMMAuthority: "auth", OpenOrders: "oo", TargetOrders: "to",
		BaseVault: "bv", QuoteVault: "qv", MarketID: "mkt", Bids: "bids", Asks: "asks",
		EventQueue: "eq", MarketBaseVault: "mbv", MarketQuoteVault: "mqv",
		VaultSigner: "vs", UserSourceATA: "usa", UserDestATA: "uda", UserWallet: "wallet",
	}
	ix := BuildSwapInstruction(in, 1000, 990)

	if len(ix.Accounts) != 17 {
		t.Fatalf("expected 17 accounts, got %d", len(ix.Accounts))
	}
	if ix.Accounts[16].Pubkey != TokenProgramID {
		t.Fatalf("expected last account to be the token program, got %s", ix.Accounts[16].Pubkey)
	}
	if !ix.Accounts[16-1].IsSigner {
		t.Fatal("expected the user wallet (second-to-last) to be the signer")
	}
	if ix.Data[0] != SwapBaseInOpcode {
		t.Fatalf("expected opcode %d, got %d", SwapBaseInOpcode, ix.Data[0])
	}
	decodedIn := binary.LittleEndian.Uint64(ix.Data[1:9])
	decodedOut := binary.LittleEndian.Uint64(ix.Data[9:17])
	if decodedIn != 1000 || decodedOut != 990 {
		t.Fatalf("swap data round-trip mismatch: got (%d,%d)", decodedIn, decodedOut)
	}
}

func buildMintBytesSafe(mintAuth, freezeAuth *string) []byte {
	data := make([]byte, 82)
	if mintAuth != nil {
		binary.LittleEndian.PutUint32(data[0:4], 1)
		b, _ := base58.Decode(*mintAuth)
		copy(data[4:36], b)
	}
	data[44] = 9
	data[45] = 1
	if freezeAuth != nil {
		binary.LittleEndian.PutUint32(data[46:50], 1)
		b, _ := base58.Decode(*freezeAuth)
		copy(data[50:82], b)
	}
	return data
}
