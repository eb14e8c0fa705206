package consensus

import (
	"math"
	"math/big"
	"strings"

	"github.com/coraxum/coraxumd/block"
)

// EstimateHashRate approximates the network hash rate from a window of
// recent blocks, most-recent-first (the same order store.BlockStore.Range
// returns with reverse=true). It is a read-only diagnostic, not a
// consensus rule: nothing in BlockVerifier or BlockFactory consults it.
//
// Grounded on blockchainutils.py's get_hash_rate: average the inter-block
// time over the window, average the blocks' hash values, then estimate the
// number of hashes implied by that average hash's leading zero bits.
func EstimateHashRate(blocks []*block.Block) (rate, sampleHashes float64) {
	if len(blocks) == 0 {
		return 0, 0
	}

	hashSum := new(big.Int)
	var sumTime, prevTime int64
	for _, b := range blocks {
		h, ok := new(big.Int).SetString(b.Hash, 16)
		if ok {
			hashSum.Add(hashSum, h)
		}
		t, err := parseUnixSeconds(b.Time)
		if err != nil {
			continue
		}
		if prevTime > 0 {
			sumTime += prevTime - t
		}
		prevTime = t
	}

	n := int64(len(blocks))
	blockTimeAvg := float64(sumTime) / float64(n)
	if blockTimeAvg == 0 {
		blockTimeAvg = 1
	}

	avgHash := new(big.Int).Div(hashSum, big.NewInt(n))
	padded := strings.Repeat("0", 64) + avgHash.Text(16)
	padded = padded[len(padded)-64:]

	zeroHexDigits := 0
	for zeroHexDigits < len(padded) && padded[zeroHexDigits] == '0' {
		zeroHexDigits++
	}
	if zeroHexDigits == 0 || zeroHexDigits == len(padded) {
		return 0, 0
	}
	zeroBits := float64(zeroHexDigits * 4)

	hsh, ok := new(big.Int).SetString(padded, 16)
	if !ok {
		return 0, 0
	}
	decDigits := len(hsh.String())
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decDigits)), nil))
	probQuot, _ := new(big.Float).Quo(new(big.Float).SetInt(hsh), divisor).Float64()

	remainderResolution := math.Pow(2, zeroBits+4) - math.Pow(2, zeroBits)
	numHashes := math.Pow(2, zeroBits) + remainderResolution*probQuot

	return numHashes / blockTimeAvg, numHashes
}
