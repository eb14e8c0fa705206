package block

import (
	"math/big"
	"testing"

	"github.com/coraxum/coraxumd/amount"
	"github.com/coraxum/coraxumd/txn"
)

func TestGenesisBlockRoundTrip(t *testing.T) {
	target, ok := new(big.Int).SetString(
		"fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", 16)
	if !ok {
		t.Fatal("bad target literal")
	}

	coinbase := &txn.Transaction{
		PublicKey: "03f44c7c4dca3a9204f1ba284d875331894ea8ab5753093be847d798274c6ce570",
		Hash:      "71429326f00ba74c6665988bf2c0b5ed9de1d57513666633efd88f0696b3d90f",
		Outputs: []txn.Output{
			{To: "1iNw3QHVs45woB9TmXL1XWHyKniTJhzC4", Value: amount.New(50, 0)},
		},
	}
	coinbase.ClassifyCoinbase(coinbase.PublicKey)

	b := &Block{
		Version:      1,
		Time:         "1537127756",
		Index:        0,
		PublicKey:    coinbase.PublicKey,
		PrevHash:     "",
		Nonce:        "0",
		SpecialMin:   false,
		Target:       target,
		Transactions: []*txn.Transaction{coinbase},
	}

	b.MerkleRoot = b.ComputeMerkleRoot()
	wantMerkle := "705d831ced1a8545805bbb474e6b271a28cbea5ada7f4197492e9a3825173546"
	if b.MerkleRoot != wantMerkle {
		t.Fatalf("merkle root = %s, want %s", b.MerkleRoot, wantMerkle)
	}

	b.Header = b.BuildHeader()
	b.Hash = b.ComputeHash()
	wantHash := "0dd0ec9ab91e9defe535841a4c70225e3f97b7447e5358250c2dc898b8bd3139"
	if b.Hash != wantHash {
		t.Fatalf("hash = %s, want %s", b.Hash, wantHash)
	}

	if !b.MeetsTarget() {
		t.Fatalf("genesis hash should be well below its all-f target")
	}
	if b.Coinbase() == nil {
		t.Fatalf("expected genesis coinbase to be found")
	}
}
