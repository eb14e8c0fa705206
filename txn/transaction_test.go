package txn

import (
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/coraxum/coraxumd/amount"
)

func fixedPrivKey(t *testing.T) *secp256k1.PrivateKey {
	t.Helper()
	// A nonzero 32-byte scalar well within curve order.
	seed, err := hex.DecodeString("1111111111111111111111111111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("bad seed: %v", err)
	}
	return secp256k1.PrivKeyFromBytes(seed)
}

func TestCanonicalHashDeterministic(t *testing.T) {
	mk := func() *Transaction {
		return &Transaction{
			PublicKey: "03f44c7c4dca3a9204f1ba284d875331894ea8ab5753093be847d798274c6ce570",
			Time:      "1537127756",
			Fee:       amount.New(0, 0),
			Outputs: []Output{
				{To: "1iNw3QHVs45woB9TmXL1XWHyKniTJhzC4", Value: amount.New(50, 0)},
			},
		}
	}
	a := mk().CanonicalHash()
	b := mk().CanonicalHash()
	if a != b {
		t.Fatalf("canonical hash not deterministic: %s vs %s", a, b)
	}

	c := mk()
	c.Fee = amount.New(1, 0)
	if c.CanonicalHash() == a {
		t.Fatalf("changing fee did not change canonical hash")
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	priv := fixedPrivKey(t)
	pub := hex.EncodeToString(priv.PubKey().SerializeCompressed())

	txn := &Transaction{
		PublicKey: pub,
		Time:      "1700000000",
		Fee:       amount.New(0, 0),
		Outputs: []Output{
			{To: "1iNw3QHVs45woB9TmXL1XWHyKniTJhzC4", Value: amount.New(1, 0)},
		},
	}
	if err := txn.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := txn.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// Tampering with an output after signing must break verification.
	txn.Outputs[0].Value = amount.New(2, 0)
	if err := txn.Verify(); err == nil {
		t.Fatalf("Verify accepted a tampered transaction")
	}
}

func TestClassifyCoinbase(t *testing.T) {
	pubKey := "03f44c7c4dca3a9204f1ba284d875331894ea8ab5753093be847d798274c6ce570"
	coinbase := &Transaction{
		PublicKey: pubKey,
		Outputs: []Output{
			{To: "1iNw3QHVs45woB9TmXL1XWHyKniTJhzC4", Value: amount.New(50, 0)},
		},
	}
	if !coinbase.ClassifyCoinbase(pubKey) {
		t.Fatalf("expected coinbase classification to be true")
	}

	notCoinbase := &Transaction{
		PublicKey: pubKey,
		Inputs:    []Input{{ID: "deadbeef"}},
		Outputs: []Output{
			{To: "1iNw3QHVs45woB9TmXL1XWHyKniTJhzC4", Value: amount.New(50, 0)},
		},
	}
	if notCoinbase.ClassifyCoinbase(pubKey) {
		t.Fatalf("transaction with an input must not classify as coinbase")
	}
}

func TestValidateStructureDuplicateInput(t *testing.T) {
	tx := &Transaction{
		Inputs: []Input{{ID: "a"}, {ID: "a"}},
	}
	if err := tx.ValidateStructure(); err == nil {
		t.Fatalf("expected duplicate input to be rejected")
	}
}
