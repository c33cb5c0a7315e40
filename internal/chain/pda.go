package chain

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// pdaMarker is appended to PDA seed material, matching Solana's
// find_program_address algorithm.
const pdaMarker = "ProgramDerivedAddress"

// ErrNoValidPDA is returned when no bump seed in [0,255] produces an
// off-curve address — astronomically unlikely, kept only for completeness.
var ErrNoValidPDA = errors.New("chain: unable to find a valid program address")

// FindProgramAddress derives a Program Derived Address from seeds and a
// base58 program ID, searching bump seeds from 255 down to 0 (the standard
// Solana algorithm) and returning the first seed producing an address that
// is not on the ed25519 curve.
func FindProgramAddress(seeds [][]byte, programID string) (address string, bump byte, err error) {
	programBytes, err := base58.Decode(programID)
	if err != nil {
		return "", 0, err
	}

	for b := 255; b >= 0; b-- {
		candidate, err := createProgramAddress(seeds, byte(b), programBytes)
		if err != nil {
			continue
		}
		if !isOnCurve(candidate) {
			return base58.Encode(candidate), byte(b), nil
		}
	}
	return "", 0, ErrNoValidPDA
}

func createProgramAddress(seeds [][]byte, bump byte, programID []byte) ([]byte, error) {
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > 32 {
			return nil, errors.New("chain: seed too long")
		}
		h.Write(s)
	}
	h.Write([]byte{bump})
	h.Write(programID)
	h.Write([]byte(pdaMarker))
	return h.Sum(nil), nil
}

// isOnCurve reports whether b decodes to a valid point on the ed25519
// curve. PDAs are deliberately chosen to be off-curve so no private key can
// ever exist for them.
func isOnCurve(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	var arr [32]byte
	copy(arr[:], b)
	_, err := new(edwards25519.Point).SetBytes(arr[:])
	return err == nil
}

// DeriveAMMAuthority derives the Raydium AMM v4 pool authority PDA
// (seeds=[amm_id], grounded on
// original_source/backend/src/raydium_direct/ix_builder.py's
// derive_amm_authority).
func DeriveAMMAuthority(ammID string) (string, error) {
	ammBytes, err := base58.Decode(ammID)
	if err != nil {
		return "", err
	}
	addr, _, err := FindProgramAddress([][]byte{ammBytes}, RaydiumAMMv4ProgramID)
	return addr, err
}

// DeriveVaultSigner derives the OpenBook/Serum market's vault-signer PDA
// (seeds = market_id || nonce as little-endian u64), per spec §6.
func DeriveVaultSigner(marketID string, nonce uint64) (string, error) {
	marketBytes, err := base58.Decode(marketID)
	if err != nil {
		return "", err
	}
	nonceLE := make([]byte, 8)
	for i := 0; i < 8; i++ {
		nonceLE[i] = byte(nonce >> (8 * i))
	}
	// Serum's vault-signer derivation is not a standard find_program_address
	// bump search: the nonce is pre-computed and stored on the market account
	// itself, so there is no trailing bump byte — just seeds+programID+marker.
	h := sha256.New()
	h.Write(marketBytes)
	h.Write(nonceLE)
	h.Write(mustDecode(OpenBookV1ProgramID))
	h.Write([]byte(pdaMarker))
	return base58.Encode(h.Sum(nil)), nil
}

// DeriveMetaplexMetadata derives the Metaplex metadata PDA for a mint
// (seeds=["metadata", metaplex_program, mint]), grounded on
// original_source/backend/src/trading/token_safety.py's _check_metadata.
func DeriveMetaplexMetadata(mint string) (string, error) {
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", err
	}
	addr, _, err := FindProgramAddress([][]byte{
		[]byte("metadata"),
		mustDecode(MetaplexProgramID),
		mintBytes,
	}, MetaplexProgramID)
	return addr, err
}

// DeriveAssociatedTokenAddress derives a wallet's ATA for a given mint.
func DeriveAssociatedTokenAddress(owner, mint string) (string, error) {
	ownerBytes, err := base58.Decode(owner)
	if err != nil {
		return "", err
	}
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", err
	}
	addr, _, err := FindProgramAddress([][]byte{
		ownerBytes,
		mustDecode(TokenProgramID),
		mintBytes,
	}, AssociatedTokenProgramID)
	return addr, err
}

func mustDecode(b58 string) []byte {
	b, err := base58.Decode(b58)
	if err != nil {
		panic(err)
	}
	return b
}
