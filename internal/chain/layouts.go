package chain

import (
	"encoding/binary"
	"errors"

	"github.com/mr-tron/base58"
)

// Well-known program IDs (spec §6; mainnet addresses, env-configurable at
// the caller so a test/devnet deployment can override them — spec §9 open
// question: venue program ids should never be hardcoded as the only option).
const (
	RaydiumAMMv4ProgramID    = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramIDV2     = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	OpenBookV1ProgramID      = "srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	MetaplexProgramID        = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
	SystemProgramID          = "11111111111111111111111111111111"
	RentSysvarID             = "SysvarRent111111111111111111111111111111111"
)

// BurnedAddresses are addresses treated as "no authority" when found in the
// mint/freeze authority slot, grounded on
// original_source/backend/src/trading/token_safety.py's BURNED_ADDRESSES.
var BurnedAddresses = map[string]bool{
	"1nc1nerator11111111111111111111111111111111": true,
	SystemProgramID: true,
}

// MintAccount is the decoded form of an SPL Token mint account (82 bytes).
// Layout (spec §6 / §8 round-trip law):
//
//	offset 0:  u32 option tag for mint_authority, then 32 bytes if tag==1
//	offset 36: u64 supply
//	offset 44: u8 decimals
//	offset 45: u8 is_initialized
//	offset 46: u32 option tag for freeze_authority, then 32 bytes if tag==1
type MintAccount struct {
	MintAuthority   *string
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *string
}

// ErrInvalidMintAccount is returned when the account data is shorter than
// the fixed 82-byte mint layout.
var ErrInvalidMintAccount = errors.New("chain: mint account data too short")

// ParseMintAccount decodes the 82-byte SPL mint account layout.
func ParseMintAccount(data []byte) (*MintAccount, error) {
	if len(data) < 82 {
		return nil, ErrInvalidMintAccount
	}

	m := &MintAccount{}

	if binary.LittleEndian.Uint32(data[0:4]) == 1 {
		addr := base58.Encode(data[4:36])
		m.MintAuthority = &addr
	}

	m.Supply = binary.LittleEndian.Uint64(data[36:44])
	m.Decimals = data[44]
	m.IsInitialized = data[45] != 0

	if binary.LittleEndian.Uint32(data[46:50]) == 1 {
		addr := base58.Encode(data[50:82])
		m.FreezeAuthority = &addr
	}

	return m, nil
}

// IsRenounced reports whether an authority slot is absent or points at a
// known burned address.
func IsRenounced(authority *string) bool {
	if authority == nil {
		return true
	}
	return BurnedAddresses[*authority]
}

// RaydiumPool is the decoded subset of fields this engine needs out of the
// 752-byte Raydium AMM v4 pool account. Field offsets are grounded on
// original_source/backend/src/raydium_direct (pool_parser.py) and spec §6.
type RaydiumPool struct {
	Status          uint64
	Nonce           uint64
	BaseDecimal     uint64
	QuoteDecimal    uint64
	BaseVault       string
	QuoteVault      string
	BaseMint        string
	QuoteMint       string
	OpenOrders      string
	MarketID        string
	MarketProgramID string
	TargetOrders    string
}

// ErrInvalidPoolAccount is returned when the account is shorter than the
// fixed 752-byte AMM v4 layout.
var ErrInvalidPoolAccount = errors.New("chain: raydium pool account data too short")

// Raydium AMM v4 field byte offsets within the 752-byte account (u64 fields
// are 8-byte little-endian, pubkeys are 32 bytes). This layout is the
// construct.Struct field order from the original Python service; spec §6
// carries it forward unverified against an authoritative on-chain IDL.
const (
	offStatus          = 0
	offNonce           = 8
	offBaseDecimal     = 40
	offQuoteDecimal    = 48
	offBaseVault       = 336
	offQuoteVault      = 368
	offBaseMint        = 400
	offQuoteMint       = 432
	offOpenOrders      = 496
	offMarketID        = 528
	offMarketProgramID = 560
	offTargetOrders    = 592
)

// ParseRaydiumPool decodes the fields this engine consumes from a 752-byte
// Raydium AMM v4 pool account.
func ParseRaydiumPool(data []byte) (*RaydiumPool, error) {
	if len(data) < 752 {
		return nil, ErrInvalidPoolAccount
	}

	pool := &RaydiumPool{
		Status:          binary.LittleEndian.Uint64(data[offStatus : offStatus+8]),
		Nonce:           binary.LittleEndian.Uint64(data[offNonce : offNonce+8]),
		BaseDecimal:     binary.LittleEndian.Uint64(data[offBaseDecimal : offBaseDecimal+8]),
		QuoteDecimal:    binary.LittleEndian.Uint64(data[offQuoteDecimal : offQuoteDecimal+8]),
		BaseVault:       base58.Encode(data[offBaseVault : offBaseVault+32]),
		QuoteVault:      base58.Encode(data[offQuoteVault : offQuoteVault+32]),
		BaseMint:        base58.Encode(data[offBaseMint : offBaseMint+32]),
		QuoteMint:       base58.Encode(data[offQuoteMint : offQuoteMint+32]),
		OpenOrders:      base58.Encode(data[offOpenOrders : offOpenOrders+32]),
		MarketID:        base58.Encode(data[offMarketID : offMarketID+32]),
		MarketProgramID: base58.Encode(data[offMarketProgramID : offMarketProgramID+32]),
		TargetOrders:    base58.Encode(data[offTargetOrders : offTargetOrders+32]),
	}
	return pool, nil
}

// MarketAccount is the decoded subset of an OpenBook/Serum market account
// needed for swap instruction assembly.
type MarketAccount struct {
	OwnAddress      string
	VaultSignerNonce uint64
	BaseVault       string
	QuoteVault      string
	Bids            string
	Asks            string
	EventQueue      string
}

// ErrInvalidMarketAccount is returned for undersized market account data.
var ErrInvalidMarketAccount = errors.New("chain: market account data too short")

// Market account field offsets. A 5-byte header and the u64 account flags
// precede own_address, so vault_signer_nonce starts at 45; the base and
// quote mints follow it, then base_vault, two u64 totals, and quote_vault.
const (
	marketOffVaultSignerNonce = 45
	marketOffBaseVault        = 117
	marketOffQuoteVault       = 165
	marketOffEventQueue       = 253
	marketOffBids             = 285
	marketOffAsks             = 317
)

// ParseMarketAccount decodes the fields needed to build a Raydium swap
// instruction's market leg.
func ParseMarketAccount(ownAddress string, data []byte) (*MarketAccount, error) {
	if len(data) < 349 {
		return nil, ErrInvalidMarketAccount
	}
	return &MarketAccount{
		OwnAddress:       ownAddress,
		VaultSignerNonce: binary.LittleEndian.Uint64(data[marketOffVaultSignerNonce : marketOffVaultSignerNonce+8]),
		BaseVault:        base58.Encode(data[marketOffBaseVault : marketOffBaseVault+32]),
		QuoteVault:       base58.Encode(data[marketOffQuoteVault : marketOffQuoteVault+32]),
		EventQueue:       base58.Encode(data[marketOffEventQueue : marketOffEventQueue+32]),
		Bids:             base58.Encode(data[marketOffBids : marketOffBids+32]),
		Asks:             base58.Encode(data[marketOffAsks : marketOffAsks+32]),
	}, nil
}
