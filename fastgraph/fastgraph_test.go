package fastgraph

import (
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/coraxum/coraxumd/amount"
	"github.com/coraxum/coraxumd/txn"
)

func privFromSeed(t *testing.T, seed string) *secp256k1.PrivateKey {
	t.Helper()
	raw, err := hex.DecodeString(seed)
	if err != nil {
		t.Fatalf("bad seed: %v", err)
	}
	return secp256k1.PrivKeyFromBytes(raw)
}

func TestFastGraphVerify(t *testing.T) {
	senderPriv := privFromSeed(t, "1111111111111111111111111111111111111111111111111111111111111111")
	participantPriv := privFromSeed(t, "2222222222222222222222222222222222222222222222222222222222222222")

	base := &txn.Transaction{
		PublicKey: hex.EncodeToString(senderPriv.PubKey().SerializeCompressed()),
		Time:      "1700000000",
		Fee:       amount.New(0, 0),
		Outputs: []txn.Output{
			{To: "1iNw3QHVs45woB9TmXL1XWHyKniTJhzC4", Value: amount.New(1, 0)},
		},
	}
	if err := base.Sign(senderPriv); err != nil {
		t.Fatalf("Sign base: %v", err)
	}

	fg := &FastGraph{Base: base}
	fg.Sign(participantPriv)

	if err := fg.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestFastGraphRejectsNoSignatures(t *testing.T) {
	senderPriv := privFromSeed(t, "1111111111111111111111111111111111111111111111111111111111111111")
	base := &txn.Transaction{
		PublicKey: hex.EncodeToString(senderPriv.PubKey().SerializeCompressed()),
		Outputs: []txn.Output{
			{To: "1iNw3QHVs45woB9TmXL1XWHyKniTJhzC4", Value: amount.New(1, 0)},
		},
	}
	if err := base.Sign(senderPriv); err != nil {
		t.Fatalf("Sign base: %v", err)
	}

	fg := &FastGraph{Base: base}
	if err := fg.Verify(); err != ErrNoSignatures {
		t.Fatalf("Verify = %v, want ErrNoSignatures", err)
	}
}

func TestFastGraphRejectsTamperedWrapperSignature(t *testing.T) {
	senderPriv := privFromSeed(t, "1111111111111111111111111111111111111111111111111111111111111111")
	participantPriv := privFromSeed(t, "2222222222222222222222222222222222222222222222222222222222222222")

	base := &txn.Transaction{
		PublicKey: hex.EncodeToString(senderPriv.PubKey().SerializeCompressed()),
		Outputs: []txn.Output{
			{To: "1iNw3QHVs45woB9TmXL1XWHyKniTJhzC4", Value: amount.New(1, 0)},
		},
	}
	if err := base.Sign(senderPriv); err != nil {
		t.Fatalf("Sign base: %v", err)
	}

	fg := &FastGraph{Base: base}
	fg.Sign(participantPriv)
	fg.Signatures[0].PublicKey = hex.EncodeToString(senderPriv.PubKey().SerializeCompressed())

	if err := fg.Verify(); err == nil {
		t.Fatalf("Verify accepted a wrapper signature under the wrong public key")
	}
}
