// Package difficulty computes the proof-of-work target from a rolling
// sample of recent block timestamps. The target is kept as a big-endian
// 256-bit integer throughout; consensus compares raw targets, never the
// human-facing difficulty figure.
package difficulty

import (
	"math"
	"math/big"
)

// TargetBits is the width of a target in bits.
const TargetBits = 256

// SampleWindow is the number of blocks the sampling window spans.
const SampleWindow = 2640

var (
	bigOne = big.NewInt(1)

	// maxTarget is the loosest target any block may have: 2^256 - 1.
	maxTarget = new(big.Int).Sub(new(big.Int).Lsh(bigOne, TargetBits), bigOne)

	// GenesisTarget is returned by Calculate until the sampling window
	// has filled, and is the target of the genesis block itself.
	GenesisTarget = new(big.Int).Rsh(maxTarget, 8)

	four = big.NewInt(4)
)

// ExpectedBlockInterval is the target time between consecutive blocks.
const ExpectedBlockInterval = int64(60_000) // milliseconds

// ExpectedWindowDurationMs is how long the sample window is expected to
// take at the target rate: SampleWindow blocks at ExpectedBlockInterval
// each.
var ExpectedWindowDurationMs = int64(SampleWindow) * ExpectedBlockInterval

// Calculate derives the next target from the current one and the
// timestamps (in milliseconds) of the first and last block in the
// sampling window ending at the latest block. If the window has not yet
// filled (sampleStart/sampleEnd are nil), it returns GenesisTarget. The
// new target is the old one scaled by actual/expected elapsed time,
// clamped to [current/4, current*4].
func Calculate(current *big.Int, sampleStart, sampleEnd *int64) *big.Int {
	if sampleStart == nil || sampleEnd == nil {
		return new(big.Int).Set(GenesisTarget)
	}

	actualElapsed := *sampleEnd - *sampleStart
	if actualElapsed <= 0 {
		actualElapsed = 1
	}

	next := new(big.Int).Mul(current, big.NewInt(actualElapsed))
	next.Div(next, big.NewInt(ExpectedWindowDurationMs))

	minTarget := new(big.Int).Div(current, four)
	maxAllowed := new(big.Int).Mul(current, four)

	if next.Cmp(minTarget) < 0 {
		next = minTarget
	}
	if next.Cmp(maxAllowed) > 0 {
		next = maxAllowed
	}
	if next.Cmp(maxTarget) > 0 {
		next = new(big.Int).Set(maxTarget)
	}
	if next.Sign() <= 0 {
		next = big.NewInt(1)
	}
	return next
}

// SatisfiesTarget reports whether hash, read as a big-endian unsigned
// integer, is at or below target.
func SatisfiesTarget(hash []byte, target *big.Int) bool {
	h := new(big.Int).SetBytes(hash)
	return h.Cmp(target) <= 0
}

// Display returns log2(MAX_TARGET/target), the human-facing difficulty
// figure. Consensus never compares this value -- only the raw target.
func Display(target *big.Int) float64 {
	if target.Sign() <= 0 {
		return 0
	}
	ratio := new(big.Rat).SetFrac(maxTarget, target)
	f, _ := ratio.Float64()
	return math.Log2(f)
}
