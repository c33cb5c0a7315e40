package chain

import (
	"encoding/binary"
)

// SwapBaseInOpcode is Raydium AMM v4's swap_base_in instruction discriminant.
const SwapBaseInOpcode = 9

// AccountMeta mirrors Solana's (pubkey, isSigner, isWritable) instruction
// account metadata.
type AccountMeta struct {
	Pubkey     string
	IsSigner   bool
	IsWritable bool
}

// Instruction is a minimal representation sufficient to serialize a
// Solana transaction message's instruction list.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// BuildSwapData encodes the Raydium swap_base_in instruction payload:
// struct.pack("<BQQ", 9, amount_in, min_amount_out) in the original service.
func BuildSwapData(amountIn, minAmountOut uint64) []byte {
	data := make([]byte, 17)
	data[0] = SwapBaseInOpcode
	binary.LittleEndian.PutUint64(data[1:9], amountIn)
	binary.LittleEndian.PutUint64(data[9:17], minAmountOut)
	return data
}

// SwapInstructionInputs holds everything needed to assemble the 17-account
// Raydium swap_base_in instruction, grounded exactly on
// original_source/backend/src/raydium_direct/ix_builder.py's
// build_swap_instruction.
type SwapInstructionInputs struct {
	AMMID           string
	AMMAuthority    string
	OpenOrders      string
	TargetOrders    string
	BaseVault       string
	QuoteVault      string
	MarketID        string
	Bids            string
	Asks            string
	EventQueue      string
	MarketBaseVault string
	MarketQuoteVault string
	VaultSigner     string
	UserSourceATA   string
	UserDestATA     string
	UserWallet      string
}

// BuildSwapInstruction assembles the Raydium AMM v4 swap instruction with
// the exact 17-account ordering the program expects.
func BuildSwapInstruction(in SwapInstructionInputs, amountIn, minAmountOut uint64) Instruction {
	return Instruction{
		ProgramID: RaydiumAMMv4ProgramID,
		Data:      BuildSwapData(amountIn, minAmountOut),
		Accounts: []AccountMeta{
			{in.AMMID, false, true},
			{in.AMMAuthority, false, false},
			{in.OpenOrders, false, true},
			{in.TargetOrders, false, true},
			{in.BaseVault, false, true},
			{in.QuoteVault, false, true},
			{OpenBookV1ProgramID, false, false},
			{in.MarketID, false, true},
			{in.Bids, false, true},
			{in.Asks, false, true},
			{in.EventQueue, false, true},
			{in.MarketBaseVault, false, true},
			{in.MarketQuoteVault, false, true},
			{in.VaultSigner, false, false},
			{in.UserSourceATA, false, true},
			{in.UserDestATA, false, true},
			{in.UserWallet, true, false},
			{TokenProgramID, false, false},
		},
	}
}

// BuildCreateATAInstruction builds the "create associated token account
// idempotent" instruction used as a pre-instruction when the user's
// destination ATA does not yet exist.
func BuildCreateATAInstruction(payer, ata, owner, mint string) Instruction {
	return Instruction{
		ProgramID: AssociatedTokenProgramID,
		Data:      []byte{1}, // CreateIdempotent
		Accounts: []AccountMeta{
			{payer, true, true},
			{ata, false, true},
			{owner, false, false},
			{mint, false, false},
			{SystemProgramID, false, false},
			{TokenProgramID, false, false},
			{RentSysvarID, false, false},
		},
	}
}
