package miner

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/coraxum/coraxumd/address"
	"github.com/coraxum/coraxumd/amount"
	"github.com/coraxum/coraxumd/block"
	"github.com/coraxum/coraxumd/chaincfg"
	"github.com/coraxum/coraxumd/store"
	"github.com/coraxum/coraxumd/txn"
	"github.com/coraxum/coraxumd/utxo"
)

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

func TestAssembleGenesisCoinbaseOnly(t *testing.T) {
	priv := testPrivKey(t)
	pubHex := hex.EncodeToString(priv.PubKey().SerializeCompressed())

	ms := &memStore{}
	idx := utxo.New(ms, nil, time.Minute)
	defer idx.Close()

	f := NewBlockFactory(ms, idx, chaincfg.Mainnet)

	b, err := f.Assemble(context.Background(), nil, pubHex, priv, 0, 1700000000)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(b.Transactions) != 1 {
		t.Fatalf("expected exactly the coinbase transaction, got %d", len(b.Transactions))
	}
	cb := b.Coinbase()
	if cb == nil {
		t.Fatalf("expected a classified coinbase transaction")
	}
	want := amount.FromScaledInt64(chaincfg.BlockReward(0))
	if !cb.OutputSum().Equal(want) {
		t.Fatalf("coinbase output sum = %s, want %s", cb.OutputSum(), want)
	}

	// A tiny search range over the real chain target essentially never
	// finds a winning nonce; Mine's best-seen fallback (ErrNoWinningNonce)
	// is the expected outcome here, matching the original search loop's
	// behavior of still returning its closest attempt.
	nonce, hash, err := f.Mine(context.Background(), b.Header, b.Target, 0, 64, false)
	if err != nil && err != ErrNoWinningNonce {
		t.Fatalf("Mine: %v", err)
	}
	if nonce == "" || hash == "" {
		t.Fatalf("Mine returned an empty nonce/hash pair")
	}
	if err := f.Finalize(b, nonce, hash, priv); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if b.Nonce != nonce || b.Hash != hash {
		t.Fatalf("Finalize did not set nonce/hash as returned by Mine")
	}

	// special_min bypasses the target comparison entirely: the very first
	// candidate nonce wins.
	specialNonce, specialHash, err := f.Mine(context.Background(), b.Header, b.Target, 0, 1, true)
	if err != nil {
		t.Fatalf("Mine with special_min: %v", err)
	}
	if specialNonce != "0" || specialHash == "" {
		t.Fatalf("special_min search = (%s, %s), want nonce 0 and a hash", specialNonce, specialHash)
	}
}

func TestAssembleRejectsDoubleSpendWithinCandidateSet(t *testing.T) {
	priv := testPrivKey(t)
	pubHex := hex.EncodeToString(priv.PubKey().SerializeCompressed())
	producerAddr, _ := address.FromPublicKeyHex(pubHex)

	recv := &txn.Transaction{PublicKey: pubHex, Hash: "recv-txn",
		Outputs: []txn.Output{{To: producerAddr, Value: amount.New(10, 0)}}}
	recvBlock := &block.Block{Index: 0, PublicKey: pubHex, Target: chaincfg.MaxTarget(), Transactions: []*txn.Transaction{recv}}
	recvBlock.MerkleRoot = recvBlock.ComputeMerkleRoot()
	recvBlock.Hash = "recv-block-hash"

	ms := &memStore{}
	if err := ms.Append(context.Background(), recvBlock); err != nil {
		t.Fatal(err)
	}

	mk := func(suffix string) *txn.Transaction {
		tx := &txn.Transaction{
			PublicKey: pubHex,
			Time:      "1700000600",
			Inputs:    []txn.Input{{ID: "recv-txn"}},
			Outputs:   []txn.Output{{To: "someone-else" + suffix, Value: amount.New(1, 0)}},
		}
		if err := tx.Sign(priv); err != nil {
			t.Fatal(err)
		}
		return tx
	}
	a := mk("-a")
	b := mk("-b")

	idx := utxo.New(ms, nil, time.Minute)
	defer idx.Close()
	f := NewBlockFactory(ms, idx, chaincfg.Mainnet)

	blk, err := f.Assemble(context.Background(), []*txn.Transaction{a, b}, pubHex, priv, 1, 1700000600)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	nonCoinbase := 0
	for _, tx := range blk.Transactions {
		if !tx.Coinbase {
			nonCoinbase++
		}
	}
	if nonCoinbase != 1 {
		t.Fatalf("expected exactly one of the two double-spending candidates to be kept, got %d", nonCoinbase)
	}
}
