package consensus

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/coraxum/coraxumd/address"
	"github.com/coraxum/coraxumd/amount"
	"github.com/coraxum/coraxumd/block"
	"github.com/coraxum/coraxumd/chaincfg"
	"github.com/coraxum/coraxumd/store"
	"github.com/coraxum/coraxumd/txn"
	"github.com/coraxum/coraxumd/utxo"
)

// memStore is a minimal in-memory store.BlockStore, duplicated from the
// utxo package's test helper since Go test helpers aren't exported across
// packages.
type memStore struct {
	blocks []*block.Block
}

func (m *memStore) Append(ctx context.Context, b *block.Block) error {
	m.blocks = append(m.blocks, b)
	return nil
}

func (m *memStore) Tip(ctx context.Context) (*block.Block, error) {
	if len(m.blocks) == 0 {
		return nil, store.ErrNotFound
	}
	return m.blocks[len(m.blocks)-1], nil
}

func (m *memStore) ByIndex(ctx context.Context, h int64) (*block.Block, error) {
	if h < 0 || int(h) >= len(m.blocks) {
		return nil, store.ErrNotFound
	}
	return m.blocks[h], nil
}

func (m *memStore) ByHash(ctx context.Context, hash string) (*block.Block, error) {
	for _, b := range m.blocks {
		if b.Hash == hash {
			return b, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) Range(ctx context.Context, lo, hi int64, reverse bool) ([]*block.Block, error) {
	var result []*block.Block
	for h := lo; h < hi && int(h) < len(m.blocks); h++ {
		if h < 0 {
			continue
		}
		result = append(result, m.blocks[h])
	}
	if reverse {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}
	return result, nil
}

func (m *memStore) TxByID(ctx context.Context, id string) (*block.Block, int, error) {
	for _, b := range m.blocks {
		for i, t := range b.Transactions {
			if t.Hash == id {
				return b, i, nil
			}
		}
	}
	return nil, 0, store.ErrNotFound
}

func (m *memStore) ContainsInput(ctx context.Context, inputID, publicKey string) (bool, error) {
	for _, b := range m.blocks {
		for _, t := range b.Transactions {
			if t.PublicKey != publicKey {
				continue
			}
			for _, in := range t.Inputs {
				if in.ID == inputID {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

func (m *memStore) Height(ctx context.Context) (int64, error) {
	return int64(len(m.blocks)) - 1, nil
}

var _ store.BlockStore = (*memStore)(nil)

func testPrivKey(t *testing.T) *secp256k1.PrivateKey {
	t.Helper()
	seed, err := hex.DecodeString("1111111111111111111111111111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("bad seed: %v", err)
	}
	return secp256k1.PrivKeyFromBytes(seed)
}

// signedGenesisBlock builds and fully signs/hashes a minimal, internally
// consistent height-0 block under priv, ready to hand to Verify.
func signedGenesisBlock(t *testing.T, priv *secp256k1.PrivateKey) *block.Block {
	t.Helper()
	pubHex := hex.EncodeToString(priv.PubKey().SerializeCompressed())
	producerAddr, err := address.FromPublicKeyHex(pubHex)
	if err != nil {
		t.Fatalf("FromPublicKeyHex: %v", err)
	}

	coinbase := &txn.Transaction{
		PublicKey: pubHex,
		Time:      "1700000000",
		Outputs: []txn.Output{
			{To: producerAddr, Value: amount.New(50, 0)},
		},
		Hash: "coinbase-hash",
	}
	coinbase.ClassifyCoinbase(pubHex)

	hugeTarget, ok := new(big.Int).SetString(
		"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", 16)
	if !ok {
		t.Fatal("bad target literal")
	}

	b := &block.Block{
		Version:      chaincfg.VersionForHeight(0),
		Time:         "1700000000",
		Index:        0,
		PublicKey:    pubHex,
		PrevHash:     "",
		Nonce:        "0",
		Target:       hugeTarget,
		Transactions: []*txn.Transaction{coinbase},
	}
	b.MerkleRoot = b.ComputeMerkleRoot()
	b.Header = b.BuildHeader()
	b.Hash = b.ComputeHash()

	hashBytes, err := hex.DecodeString(b.Hash)
	if err != nil {
		t.Fatalf("decode hash: %v", err)
	}
	sig := ecdsa.Sign(priv, hashBytes)
	b.Signature = base64.StdEncoding.EncodeToString(sig.Serialize())

	return b
}

func TestVerifyAcceptsSignedGenesisBlock(t *testing.T) {
	priv := testPrivKey(t)
	b := signedGenesisBlock(t, priv)

	ms := &memStore{}
	idx := utxo.New(ms, nil, time.Minute)
	defer idx.Close()

	v := NewBlockVerifier(ms, idx)
	if err := v.Verify(context.Background(), b); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsBadMerkleRoot(t *testing.T) {
	priv := testPrivKey(t)
	b := signedGenesisBlock(t, priv)
	b.MerkleRoot = "0000000000000000000000000000000000000000000000000000000000000"

	ms := &memStore{}
	idx := utxo.New(ms, nil, time.Minute)
	defer idx.Close()

	v := NewBlockVerifier(ms, idx)
	err := v.Verify(context.Background(), b)
	re, ok := err.(RuleError)
	if !ok || re.ErrorCode != ErrInvalidMerkleRoot {
		t.Fatalf("err = %v, want RuleError{ErrInvalidMerkleRoot}", err)
	}
}

func TestVerifyRejectsWrongVersion(t *testing.T) {
	priv := testPrivKey(t)
	b := signedGenesisBlock(t, priv)
	b.Version = 99

	ms := &memStore{}
	idx := utxo.New(ms, nil, time.Minute)
	defer idx.Close()

	v := NewBlockVerifier(ms, idx)
	err := v.Verify(context.Background(), b)
	re, ok := err.(RuleError)
	if !ok || re.ErrorCode != ErrInvalidVersion {
		t.Fatalf("err = %v, want RuleError{ErrInvalidVersion}", err)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	priv := testPrivKey(t)
	b := signedGenesisBlock(t, priv)
	// Re-sign a different hash so the stored signature no longer matches
	// b.Hash, without touching the hash/merkle fields themselves.
	otherSum := sha256.Sum256([]byte("not the real block"))
	sig := ecdsa.Sign(priv, otherSum[:])
	b.Signature = base64.StdEncoding.EncodeToString(sig.Serialize())

	ms := &memStore{}
	idx := utxo.New(ms, nil, time.Minute)
	defer idx.Close()

	v := NewBlockVerifier(ms, idx)
	err := v.Verify(context.Background(), b)
	re, ok := err.(RuleError)
	if !ok || re.ErrorCode != ErrInvalidSignature {
		t.Fatalf("err = %v, want RuleError{ErrInvalidSignature}", err)
	}
}

func TestVerifyRejectsOversizedNonce(t *testing.T) {
	priv := testPrivKey(t)
	b := signedGenesisBlock(t, priv)
	longNonce := ""
	for i := 0; i <= chaincfg.MaxNonceLen; i++ {
		longNonce += "9"
	}
	b.Nonce = longNonce

	ms := &memStore{}
	idx := utxo.New(ms, nil, time.Minute)
	defer idx.Close()

	v := NewBlockVerifier(ms, idx)
	err := v.Verify(context.Background(), b)
	re, ok := err.(RuleError)
	if !ok || re.ErrorCode != ErrInvalidNonce {
		t.Fatalf("err = %v, want RuleError{ErrInvalidNonce}", err)
	}
}

func TestVerifyRejectsUnknownInput(t *testing.T) {
	priv := testPrivKey(t)
	pubHex := hex.EncodeToString(priv.PubKey().SerializeCompressed())
	producerAddr, _ := address.FromPublicKeyHex(pubHex)

	genesis := signedGenesisBlock(t, priv)

	spend := &txn.Transaction{
		PublicKey: pubHex,
		Time:      "1700000600",
		Inputs:    []txn.Input{{ID: "never-existed"}},
		Outputs: []txn.Output{
			{To: producerAddr, Value: amount.New(1, 0)},
		},
		Hash: "spend-hash",
	}

	hugeTarget, _ := new(big.Int).SetString(
		"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", 16)
	coinbase2 := &txn.Transaction{
		PublicKey: pubHex,
		Time:      "1700000600",
		Outputs: []txn.Output{
			{To: producerAddr, Value: amount.New(50, 0)},
		},
		Hash: "coinbase2-hash",
	}
	coinbase2.ClassifyCoinbase(pubHex)

	b1 := &block.Block{
		Version:      chaincfg.VersionForHeight(1),
		Time:         "1700000600",
		Index:        1,
		PublicKey:    pubHex,
		PrevHash:     genesis.Hash,
		Nonce:        "0",
		Target:       hugeTarget,
		Transactions: []*txn.Transaction{coinbase2, spend},
	}
	b1.MerkleRoot = b1.ComputeMerkleRoot()
	b1.Header = b1.BuildHeader()
	b1.Hash = b1.ComputeHash()
	hashBytes, _ := hex.DecodeString(b1.Hash)
	sig := ecdsa.Sign(priv, hashBytes)
	b1.Signature = base64.StdEncoding.EncodeToString(sig.Serialize())

	ms := &memStore{}
	if err := ms.Append(context.Background(), genesis); err != nil {
		t.Fatal(err)
	}

	idx := utxo.New(ms, nil, time.Minute)
	defer idx.Close()

	v := NewBlockVerifier(ms, idx)
	err := v.Verify(context.Background(), b1)
	re, ok := err.(RuleError)
	if !ok || re.ErrorCode != ErrInvalidTransaction {
		t.Fatalf("err = %v, want RuleError{ErrInvalidTransaction}", err)
	}
}
