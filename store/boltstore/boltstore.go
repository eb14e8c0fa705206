// Package boltstore implements store.BlockStore on top of a local bbolt
// database, the embedded single-process option the teacher and its pool
// point to for data that only one writer ever touches. It's the natural
// home for a node running standalone or for tests that don't want to stand
// up MongoDB.
package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"go.etcd.io/bbolt"

	"github.com/coraxum/coraxumd/amount"
	"github.com/coraxum/coraxumd/block"
	"github.com/coraxum/coraxumd/store"
	"github.com/coraxum/coraxumd/txn"
)

var (
	bucketByHeight = []byte("blocks_by_height")
	bucketByHash   = []byte("blocks_by_hash") // hash -> height
	bucketTxIndex  = []byte("tx_index")        // txid -> height|txIndex
	bucketInputs   = []byte("spent_inputs")    // publicKey|inputID -> struct{}
)

// Store is a bbolt-backed BlockStore. It holds its own *bbolt.DB handle;
// callers are responsible for opening and closing it.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a bbolt database at path and ensures
// all required buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketByHeight, bucketByHash, bucketTxIndex, bucketInputs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// wireOutput and wireTransaction mirror the stable on-disk field names from
// the external-interface section: transactions are flattened for storage,
// independent of the in-memory txn.Transaction shape.
type wireOutput struct {
	To    string `json:"to"`
	Value string `json:"value"`
}

type wireInput struct {
	ID                string `json:"id"`
	ExternalPublicKey string `json:"externalPublicKey,omitempty"`
}

type wireTransaction struct {
	PublicKey    string       `json:"public_key"`
	Time         string       `json:"time"`
	Fee          string       `json:"fee"`
	Relationship string       `json:"relationship,omitempty"`
	DHPublicKey  string       `json:"dh_public_key,omitempty"`
	RID          string       `json:"rid,omitempty"`
	Inputs       []wireInput  `json:"inputs"`
	Outputs      []wireOutput `json:"outputs"`
	Hash         string       `json:"hash"`
	ID           string       `json:"id"`
	Coinbase     bool         `json:"coinbase"`
}

type wireBlock struct {
	Version      int               `json:"version"`
	Time         string            `json:"time"`
	Index        int64             `json:"index"`
	PublicKey    string            `json:"public_key"`
	PrevHash     string            `json:"prevHash"`
	Nonce        string            `json:"nonce"`
	SpecialMin   bool              `json:"special_min"`
	Target       string            `json:"target"`
	Transactions []wireTransaction `json:"transactions"`
	Hash         string            `json:"hash"`
	MerkleRoot   string            `json:"merkleRoot"`
	Signature    string            `json:"id"`
	Header       string            `json:"header"`
}

func toWire(b *block.Block) wireBlock {
	txns := make([]wireTransaction, len(b.Transactions))
	for i, t := range b.Transactions {
		ins := make([]wireInput, len(t.Inputs))
		for j, in := range t.Inputs {
			ins[j] = wireInput{ID: in.ID, ExternalPublicKey: in.ExternalPublicKey}
		}
		outs := make([]wireOutput, len(t.Outputs))
		for j, o := range t.Outputs {
			outs[j] = wireOutput{To: o.To, Value: o.Value.String()}
		}
		txns[i] = wireTransaction{
			PublicKey:    t.PublicKey,
			Time:         t.Time,
			Fee:          t.Fee.String(),
			Relationship: t.Relationship,
			DHPublicKey:  t.DHPublicKey,
			RID:          t.RID,
			Inputs:       ins,
			Outputs:      outs,
			Hash:         t.Hash,
			ID:           t.ID,
			Coinbase:     t.Coinbase,
		}
	}
	return wireBlock{
		Version:      b.Version,
		Time:         b.Time,
		Index:        b.Index,
		PublicKey:    b.PublicKey,
		PrevHash:     b.PrevHash,
		Nonce:        b.Nonce,
		SpecialMin:   b.SpecialMin,
		Target:       b.TargetHex(),
		Transactions: txns,
		Hash:         b.Hash,
		MerkleRoot:   b.MerkleRoot,
		Signature:    b.Signature,
		Header:       b.Header,
	}
}

func fromWire(w wireBlock) (*block.Block, error) {
	target, ok := new(big.Int).SetString(w.Target, 16)
	if !ok {
		return nil, fmt.Errorf("boltstore: malformed target %q", w.Target)
	}
	txns := make([]*txn.Transaction, len(w.Transactions))
	for i, wt := range w.Transactions {
		fee, err := amount.Parse(wt.Fee)
		if err != nil {
			return nil, err
		}
		ins := make([]txn.Input, len(wt.Inputs))
		for j, in := range wt.Inputs {
			ins[j] = txn.Input{ID: in.ID, ExternalPublicKey: in.ExternalPublicKey}
		}
		outs := make([]txn.Output, len(wt.Outputs))
		for j, o := range wt.Outputs {
			val, err := amount.Parse(o.Value)
			if err != nil {
				return nil, err
			}
			outs[j] = txn.Output{To: o.To, Value: val}
		}
		txns[i] = &txn.Transaction{
			PublicKey:    wt.PublicKey,
			Time:         wt.Time,
			Fee:          fee,
			Relationship: wt.Relationship,
			DHPublicKey:  wt.DHPublicKey,
			RID:          wt.RID,
			Inputs:       ins,
			Outputs:      outs,
			Hash:         wt.Hash,
			ID:           wt.ID,
			Coinbase:     wt.Coinbase,
		}
	}
	return &block.Block{
		Version:      w.Version,
		Time:         w.Time,
		Index:        w.Index,
		PublicKey:    w.PublicKey,
		PrevHash:     w.PrevHash,
		Nonce:        w.Nonce,
		SpecialMin:   w.SpecialMin,
		Target:       target,
		Transactions: txns,
		Hash:         w.Hash,
		MerkleRoot:   w.MerkleRoot,
		Signature:    w.Signature,
		Header:       w.Header,
	}, nil
}

func heightKey(h int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(h))
	return buf
}

func inputKey(publicKey, inputID string) []byte {
	return []byte(publicKey + "|" + inputID)
}

// Append implements store.BlockStore.
func (s *Store) Append(ctx context.Context, b *block.Block) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		heights := tx.Bucket(bucketByHeight)
		cur := heights.Cursor()
		lastKey, _ := cur.Last()

		if lastKey == nil {
			if b.Index != 0 {
				return store.ErrOrphanBlock
			}
		} else {
			tip, err := decodeAt(heights, lastKey)
			if err != nil {
				return err
			}
			if b.PrevHash != tip.Hash {
				return store.ErrOrphanBlock
			}
		}

		payload, err := json.Marshal(toWire(b))
		if err != nil {
			return err
		}
		if err := heights.Put(heightKey(b.Index), payload); err != nil {
			return err
		}
		if err := tx.Bucket(bucketByHash).Put([]byte(b.Hash), heightKey(b.Index)); err != nil {
			return err
		}
		txIdx := tx.Bucket(bucketTxIndex)
		for i, t := range b.Transactions {
			loc := make([]byte, 16)
			binary.BigEndian.PutUint64(loc[0:8], uint64(b.Index))
			binary.BigEndian.PutUint64(loc[8:16], uint64(i))
			if err := txIdx.Put([]byte(t.Hash), loc); err != nil {
				return err
			}
		}
		inputs := tx.Bucket(bucketInputs)
		for _, t := range b.Transactions {
			for _, in := range t.Inputs {
				owner := t.PublicKey
				if in.External() {
					owner = in.ExternalPublicKey
				}
				if err := inputs.Put(inputKey(owner, in.ID), []byte{1}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func decodeAt(bucket *bbolt.Bucket, key []byte) (*block.Block, error) {
	payload := bucket.Get(key)
	if payload == nil {
		return nil, store.ErrNotFound
	}
	var w wireBlock
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, err
	}
	return fromWire(w)
}

// Tip implements store.BlockStore.
func (s *Store) Tip(ctx context.Context) (*block.Block, error) {
	var result *block.Block
	err := s.db.View(func(tx *bbolt.Tx) error {
		heights := tx.Bucket(bucketByHeight)
		key, _ := heights.Cursor().Last()
		if key == nil {
			return store.ErrNotFound
		}
		b, err := decodeAt(heights, key)
		if err != nil {
			return err
		}
		result = b
		return nil
	})
	return result, err
}

// ByIndex implements store.BlockStore.
func (s *Store) ByIndex(ctx context.Context, h int64) (*block.Block, error) {
	var result *block.Block
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := decodeAt(tx.Bucket(bucketByHeight), heightKey(h))
		if err != nil {
			return err
		}
		result = b
		return nil
	})
	return result, err
}

// ByHash implements store.BlockStore.
func (s *Store) ByHash(ctx context.Context, hash string) (*block.Block, error) {
	var result *block.Block
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(bucketByHash).Get([]byte(hash))
		if key == nil {
			return store.ErrNotFound
		}
		b, err := decodeAt(tx.Bucket(bucketByHeight), key)
		if err != nil {
			return err
		}
		result = b
		return nil
	})
	return result, err
}

// Range implements store.BlockStore.
func (s *Store) Range(ctx context.Context, lo, hi int64, reverse bool) ([]*block.Block, error) {
	var result []*block.Block
	err := s.db.View(func(tx *bbolt.Tx) error {
		heights := tx.Bucket(bucketByHeight)
		for h := lo; h < hi; h++ {
			payload := heights.Get(heightKey(h))
			if payload == nil {
				continue
			}
			var w wireBlock
			if err := json.Unmarshal(payload, &w); err != nil {
				return err
			}
			b, err := fromWire(w)
			if err != nil {
				return err
			}
			result = append(result, b)
		}
		return nil
	})
	if reverse {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}
	return result, err
}

// TxByID implements store.BlockStore.
func (s *Store) TxByID(ctx context.Context, id string) (*block.Block, int, error) {
	var (
		result *block.Block
		idx    int
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		loc := tx.Bucket(bucketTxIndex).Get([]byte(id))
		if loc == nil {
			return store.ErrNotFound
		}
		height := int64(binary.BigEndian.Uint64(loc[0:8]))
		idx = int(binary.BigEndian.Uint64(loc[8:16]))
		b, err := decodeAt(tx.Bucket(bucketByHeight), heightKey(height))
		if err != nil {
			return err
		}
		result = b
		return nil
	})
	return result, idx, err
}

// ContainsInput implements store.BlockStore.
func (s *Store) ContainsInput(ctx context.Context, inputID, publicKey string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketInputs).Get(inputKey(publicKey, inputID)) != nil
		return nil
	})
	return found, err
}

// Height implements store.BlockStore.
func (s *Store) Height(ctx context.Context) (int64, error) {
	var height int64 = -1
	err := s.db.View(func(tx *bbolt.Tx) error {
		key, _ := tx.Bucket(bucketByHeight).Cursor().Last()
		if key == nil {
			return nil
		}
		height = int64(binary.BigEndian.Uint64(key))
		return nil
	})
	return height, err
}

var _ store.BlockStore = (*Store)(nil)
