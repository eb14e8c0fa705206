package blockwire

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// MerkleRoot computes the Merkle root over txHashes following the
// specification exactly: hashes are first sorted ascending, case-
// insensitively, as hex strings; each level pairs adjacent hashes and
// hashes their concatenation (as raw hex text, not decoded bytes) with a
// single SHA-256; an odd hash at the end of a level is paired with the
// empty string rather than duplicated. The process repeats until one hash
// remains.
func MerkleRoot(txHashes []string) string {
	if len(txHashes) == 0 {
		return ""
	}
	sorted := make([]string, len(txHashes))
	copy(sorted, txHashes)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i]) < strings.ToLower(sorted[j])
	})
	return reduceLevel(sorted)
}

// reduceLevel always performs one pairing round, even over a single input
// hash (paired against the empty string) — matching set_merkle_root's
// behavior of hashing at least once regardless of transaction count, so a
// block with exactly one transaction does not use its hash as-is for the
// Merkle root.
func reduceLevel(level []string) string {
	next := make([]string, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		left := level[i]
		right := ""
		if i+1 < len(level) {
			right = level[i+1]
		}
		next = append(next, hashPair(left, right))
	}
	if len(next) > 1 {
		return reduceLevel(next)
	}
	return next[0]
}

func hashPair(left, right string) string {
	sum := sha256.Sum256([]byte(left + right))
	return hex.EncodeToString(sum[:])
}
