// Package chaincfg defines the network-wide consensus constants and the
// pure, height-indexed schedules (protocol version, block subsidy, proof
// of work limits) that every other package consults. Nothing in this
// package touches the network, the clock, or storage — it is pure
// arithmetic over a height, mirroring the Params struct idiom of the
// teacher's chaincfg package, trimmed to the schedules this chain
// actually uses.
package chaincfg

import (
	"math/big"
)

// Network identifies which parameter set a node is running under.
type Network int

const (
	Mainnet Network = iota
	Testnet
	Regnet
)

// String implements fmt.Stringer.
func (n Network) String() string {
	switch n {
	case Mainnet:
		return "mainnet"
	case Testnet:
		return "testnet"
	case Regnet:
		return "regnet"
	default:
		return "unknown"
	}
}

const (
	// RetargetPeriod is the number of blocks between difficulty
	// retargets.
	RetargetPeriod = 2016

	// TwoWeeks is the target duration, in seconds, of one retarget
	// period.
	TwoWeeks = 1209600

	// HalfWeek is the floor clamp applied to the elapsed time used in a
	// retarget calculation.
	HalfWeek = 302400

	// MaxNonceLen is the maximum length, in bytes, of a block's nonce
	// string.
	MaxNonceLen = 40

	// POWForkV2 is the last height at which block version 2 headers are
	// used; every height above it uses version 3.
	POWForkV2 = 1402000

	// v1ForkHeight is the last height at which block version 1 headers
	// are produced.
	v1ForkHeight = 14484

	// stuckChainReliefHeight is the height from which the "stuck chain"
	// difficulty relaxation rule (see consensus.DifficultyEngine's
	// TargetForHeight) applies.
	stuckChainReliefHeight = 38600

	// halvingInterval is the number of blocks between subsidy halvings.
	halvingInterval = 210000

	// subsidyEndHeight is the height at which the subsidy reaches zero.
	subsidyEndHeight = 6930000

	// baseSubsidy is the block reward paid at height 0, before any
	// halving, in whole coin.
	baseSubsidy = 50
)

// MaxTarget is the loosest allowed proof-of-work target: 2^240 - 1.
func MaxTarget() *big.Int {
	t := new(big.Int).Lsh(big.NewInt(1), 240)
	return t.Sub(t, big.NewInt(1))
}

// TargetBlockTime returns the desired spacing, in seconds, between blocks
// for the given network.
func TargetBlockTime(net Network) int64 {
	switch net {
	case Testnet, Regnet:
		return 150
	default:
		return 600
	}
}

// StuckChainReliefHeight reports whether height h is at or past the point
// where the "stuck chain" relaxation rule in
// consensus.DifficultyEngine.TargetForHeight applies.
func StuckChainReliefHeight(h int64) bool {
	return h >= stuckChainReliefHeight
}

// VersionForHeight returns the block header version mandated for height h.
func VersionForHeight(h int64) int {
	switch {
	case h <= v1ForkHeight:
		return 1
	case h <= POWForkV2:
		return 2
	default:
		return 3
	}
}

// subsidyTable is the pre-truncated-to-8-decimals halving schedule:
// subsidy(h) is baseSubsidy halved once per halvingInterval blocks,
// terminating at exactly 0 at subsidyEndHeight. It is built once, by
// repeated integer halving of the value in 1e-8 units, so each step is the
// previous value truncated to 8 decimals and then halved again; a
// floating-point baseSubsidy/2^n would produce different low-order digits
// after enough halvings.
var subsidyTable = buildSubsidyTable()

func buildSubsidyTable() []int64 {
	const scale = 100000000 // 8 decimal places, as integer "satoshi-like" units
	table := make([]int64, 0, subsidyEndHeight/halvingInterval+1)
	cur := int64(baseSubsidy * scale)
	for h := int64(0); h < subsidyEndHeight; h += halvingInterval {
		table = append(table, cur)
		cur = cur / 2
	}
	table = append(table, 0)
	return table
}

// BlockReward returns the block subsidy due at height h, as an integer
// number of 1e-8 units (the same fixed-point scale amount.Amount uses
// internally), following the standard Bitcoin-lineage geometric halving
// series pre-truncated to 8 decimal places at each step.
func BlockReward(h int64) int64 {
	if h >= subsidyEndHeight {
		return 0
	}
	idx := h / halvingInterval
	if int(idx) >= len(subsidyTable) {
		return 0
	}
	return subsidyTable[idx]
}
