package utxo

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/coraxum/coraxumd/amount"
	"github.com/coraxum/coraxumd/block"
	"github.com/coraxum/coraxumd/store"
	"github.com/coraxum/coraxumd/txn"
)

// memStore is a minimal in-memory store.BlockStore for exercising Index
// without a real backend.
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

const testPubKey = "03f44c7c4dca3a9204f1ba284d875331894ea8ab5753093be847d798274c6ce570"
const testAddr = "1iNw3QHVs45woB9TmXL1XWHyKniTJhzC4"

func mkBlock(idx int64, prevHash string, txns []*txn.Transaction) *block.Block {
	b := &block.Block{
		Version:      1,
		Index:        idx,
		PublicKey:    testPubKey,
		PrevHash:     prevHash,
		Target:       big.NewInt(1 << 62),
		Transactions: txns,
	}
	b.MerkleRoot = b.ComputeMerkleRoot()
	b.Hash = "blockhash" + amount.New(idx, 0).String()
	return b
}

func TestUnspentOutputsAndSpend(t *testing.T) {
	recv := &txn.Transaction{
		PublicKey: testPubKey,
		Hash:      "recv-txn",
		Outputs:   []txn.Output{{To: testAddr, Value: amount.New(10, 0)}},
	}
	b0 := mkBlock(0, "", []*txn.Transaction{recv})

	spend := &txn.Transaction{
		PublicKey: testPubKey,
		Hash:      "spend-txn",
		Inputs:    []txn.Input{{ID: "recv-txn"}},
		Outputs:   []txn.Output{{To: "someone-else", Value: amount.New(10, 0)}},
	}
	b1 := mkBlock(1, b0.Hash, []*txn.Transaction{spend})

	ms := &memStore{}
	if err := ms.Append(context.Background(), b0); err != nil {
		t.Fatal(err)
	}

	idx := New(ms, nil, time.Minute)
	defer idx.Close()

	unspent, err := idx.UnspentOutputs(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("UnspentOutputs: %v", err)
	}
	if len(unspent) != 1 || unspent[0].TxnID != "recv-txn" {
		t.Fatalf("unexpected unspent set: %+v", unspent)
	}

	bal, err := idx.Balance(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !bal.Equal(amount.New(10, 0)) {
		t.Fatalf("balance = %s, want 10", bal)
	}

	if err := ms.Append(context.Background(), b1); err != nil {
		t.Fatal(err)
	}

	unspentAfter, err := idx.UnspentOutputs(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("UnspentOutputs after spend: %v", err)
	}
	if len(unspentAfter) != 0 {
		t.Fatalf("expected output to be marked spent, got %+v", unspentAfter)
	}
}

func TestCheckDoubleSpend(t *testing.T) {
	recv := &txn.Transaction{
		PublicKey: testPubKey,
		Hash:      "recv-txn",
		Outputs:   []txn.Output{{To: testAddr, Value: amount.New(10, 0)}},
	}
	spend := &txn.Transaction{
		PublicKey: testPubKey,
		Hash:      "spend-txn",
		Inputs:    []txn.Input{{ID: "recv-txn"}},
		Outputs:   []txn.Output{{To: "someone-else", Value: amount.New(10, 0)}},
	}
	b0 := mkBlock(0, "", []*txn.Transaction{recv})
	b1 := mkBlock(1, b0.Hash, []*txn.Transaction{spend})

	ms := &memStore{}
	ms.Append(context.Background(), b0)
	ms.Append(context.Background(), b1)

	idx := New(ms, nil, time.Minute)
	defer idx.Close()

	again := &txn.Transaction{
		PublicKey: testPubKey,
		Hash:      "double-spend-attempt",
		Inputs:    []txn.Input{{ID: "recv-txn"}},
		Outputs:   []txn.Output{{To: "attacker", Value: amount.New(10, 0)}},
	}
	dup, err := idx.CheckDoubleSpend(context.Background(), again)
	if err != nil {
		t.Fatalf("CheckDoubleSpend: %v", err)
	}
	if !dup {
		t.Fatalf("expected double-spend to be detected")
	}
}

func TestUnspentOutputsUnknownAddressIsNotFound(t *testing.T) {
	ms := &memStore{}
	idx := New(ms, nil, time.Minute)
	defer idx.Close()

	unspent, err := idx.UnspentOutputs(context.Background(), "nobody")
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("UnspentOutputs: %v", err)
	}
	if len(unspent) != 0 {
		t.Fatalf("expected no unspent outputs for unknown address")
	}
}
