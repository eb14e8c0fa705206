package blockwire

import (
	"math/big"
	"testing"
)

// TestGenesisHeaderHash reproduces the genesis block end to end: build the
// v1 header template, substitute the stored nonce, and double-hash it. The
// genesis target is a 63-digit hex literal baked into the block at creation
// time, not derived from chaincfg.MaxTarget, so the test constructs it
// directly.
func TestGenesisHeaderHash(t *testing.T) {
	target, ok := new(big.Int).SetString(
		"fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", 16)
	if !ok {
		t.Fatal("bad target literal")
	}

	fields := HeaderFields{
		Version:    1,
		Time:       "1537127756",
		PublicKey:  "03f44c7c4dca3a9204f1ba284d875331894ea8ab5753093be847d798274c6ce570",
		Index:      0,
		PrevHash:   "",
		SpecialMin: false,
		Target:     target,
		MerkleRoot: "705d831ced1a8545805bbb474e6b271a28cbea5ada7f4197492e9a3825173546",
	}

	header := BuildHeader(fields)
	got := HashFromHeader(header, "0")
	want := "0dd0ec9ab91e9defe535841a4c70225e3f97b7447e5358250c2dc898b8bd3139"
	if got != want {
		t.Fatalf("genesis hash = %s, want %s", got, want)
	}
}
