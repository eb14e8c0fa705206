package blockwire

import "math/big"

// HashMeetsTarget reports whether hashHex, interpreted as a big-endian
// unsigned integer, is strictly less than target — the proof-of-work
// acceptance condition.
func HashMeetsTarget(hashHex string, target *big.Int) bool {
	hashInt, ok := new(big.Int).SetString(hashHex, 16)
	if !ok {
		return false
	}
	return hashInt.Cmp(target) < 0
}

// TargetHex renders target as a lowercase, zero-padded 64-hex-digit
// string, the canonical on-disk/wire representation.
func TargetHex(target *big.Int) string {
	s := target.Text(16)
	if len(s) >= 64 {
		return s
	}
	return zeroPad(s, 64)
}

func zeroPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := make([]byte, width-len(s))
	for i := range pad {
		pad[i] = '0'
	}
	return string(pad) + s
}

// TargetDecimal renders target as a plain base-10 decimal string, the
// representation used in header layouts below version 3.
func TargetDecimal(target *big.Int) string {
	return target.String()
}
