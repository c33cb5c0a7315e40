package risk

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/mr-tron/base58"
)

func buildMintWithAuthority(auth string) []byte {
	data := make([]byte, 82)
	binary.LittleEndian.PutUint32(data[0:4], 1)
	b, _ := base58.Decode(auth)
	copy(data[4:36], b)
	data[44] = 9
	data[45] = 1
	return data
}

// TestSafetyBlockScenario mirrors spec.md's concrete scenario 3: a mint
// account with mint_auth_option=1 and an authority not in the burned set
// must be rejected with Policy(token_safety:mint_authority).
func TestSafetyBlockScenario(t *testing.T) {
	g := NewGate(DefaultThresholds(), nil, nil, nil, nil)

	cand := Candidate{
		TokenMint:       "T",
		Score:           1.0,
		LiquidityQuote:  100,
		PoolCreatedAt:   time.Now().Add(-10 * time.Minute),
		ObservedAt:      time.Now(),
		MintAccountData: buildMintWithAuthority("B1111111111111111111111111111111111111111"),
	}

	err := g.Evaluate(context.Background(), cand)
	if err == nil {
		t.Fatal("expected a block, got nil")
	}
	br, ok := err.(BlockReason)
	if !ok || br.Check != "token_safety:mint_authority" {
		t.Fatalf("expected Policy(token_safety:mint_authority), got %v", err)
	}
}

func TestPoolAgeBoundary(t *testing.T) {
	g := NewGate(DefaultThresholds(), nil, nil, nil, nil)
	base := Candidate{
		TokenMint: "T", Score: 1.0, LiquidityQuote: 100,
		MintAccountData: buildMintWithAuthority("1nc1nerator11111111111111111111111111111111"),
	}

	exact := base
	exact.PoolCreatedAt = time.Now().Add(-120 * time.Second)
	exact.ObservedAt = time.Now()
	if err := g.Evaluate(context.Background(), exact); err != nil {
		if br, ok := err.(BlockReason); ok && br.Check == "pool_age" {
			t.Fatalf("expected exact floor to pass, got %v", err)
		}
	}

	oneBelow := base
	oneBelow.PoolCreatedAt = time.Now().Add(-119 * time.Second)
	oneBelow.ObservedAt = time.Now()
	err := g.Evaluate(context.Background(), oneBelow)
	br, ok := err.(BlockReason)
	if !ok || br.Check != "pool_age" {
		t.Fatalf("expected pool_age block one second below floor, got %v", err)
	}
}
