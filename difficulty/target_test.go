package difficulty

import (
	"math/big"
	"testing"
)

func TestCalculateReturnsGenesisBeforeWindowFills(t *testing.T) {
	got := Calculate(GenesisTarget, nil, nil)
	if got.Cmp(GenesisTarget) != 0 {
		t.Fatalf("expected GenesisTarget, got %s", got.String())
	}
}

func TestCalculateClampsToQuarterAndQuadruple(t *testing.T) {
	current := GenesisTarget

	// actual much faster than expected: target should shrink, never by
	// more than 4x.
	fast := ExpectedWindowDurationMs / 100
	start := int64(0)
	end := fast
	got := Calculate(current, &start, &end)
	minAllowed := new(big.Int).Div(current, big.NewInt(4))
	if got.Cmp(minAllowed) < 0 {
		t.Fatalf("target shrank past the 4x floor: got %s, floor %s", got.String(), minAllowed.String())
	}

	// actual much slower than expected: target should grow, never by
	// more than 4x.
	slow := ExpectedWindowDurationMs * 100
	end = slow
	got = Calculate(current, &start, &end)
	maxAllowed := new(big.Int).Mul(current, big.NewInt(4))
	if got.Cmp(maxAllowed) > 0 {
		t.Fatalf("target grew past the 4x ceiling: got %s, ceiling %s", got.String(), maxAllowed.String())
	}
}

func TestSatisfiesTarget(t *testing.T) {
	low := make([]byte, 32) // all zero: satisfies any target
	if !SatisfiesTarget(low, GenesisTarget) {
		t.Fatalf("expected all-zero hash to satisfy target")
	}

	high := make([]byte, 32)
	for i := range high {
		high[i] = 0xff
	}
	if SatisfiesTarget(high, GenesisTarget) {
		t.Fatalf("expected all-ff hash to exceed target")
	}
}
