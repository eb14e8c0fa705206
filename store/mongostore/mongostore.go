// Package mongostore implements store.BlockStore against MongoDB, the
// persistent document store the external-interface section assumes:
// a "blocks" collection holding one document per committed block, indexed
// by index and by hash.
package mongostore

import (
	"context"
	"errors"
	"math/big"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coraxum/coraxumd/amount"
	"github.com/coraxum/coraxumd/block"
	"github.com/coraxum/coraxumd/store"
	"github.com/coraxum/coraxumd/txn"
)

// Store is a MongoDB-backed store.BlockStore.
type Store struct {
	blocks *mongo.Collection
}

// New wraps the "blocks" collection of db as a BlockStore. Callers own the
// *mongo.Database's lifecycle (connect, disconnect, index creation).
func New(db *mongo.Database) *Store {
	return &Store{blocks: db.Collection("blocks")}
}

// EnsureIndexes creates the indexes Append, ByIndex, ByHash, TxByID, and
// ContainsInput rely on for acceptable query performance. It's idempotent
// and safe to call on every process start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.blocks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "index", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "transactions.hash", Value: 1}}},
		{Keys: bson.D{{Key: "transactions.inputs.id", Value: 1}}},
	})
	return err
}

type mongoOutput struct {
	To    string `bson:"to"`
	Value string `bson:"value"`
}

type mongoInput struct {
	ID                string `bson:"id"`
	ExternalPublicKey string `bson:"externalPublicKey,omitempty"`
}

type mongoTransaction struct {
	PublicKey    string        `bson:"public_key"`
	Time         string        `bson:"time"`
	Fee          string        `bson:"fee"`
	Relationship string        `bson:"relationship,omitempty"`
	DHPublicKey  string        `bson:"dh_public_key,omitempty"`
	RID          string        `bson:"rid,omitempty"`
	Inputs       []mongoInput  `bson:"inputs"`
	Outputs      []mongoOutput `bson:"outputs"`
	Hash         string        `bson:"hash"`
	ID           string        `bson:"id"`
	Coinbase     bool          `bson:"coinbase"`
}

type mongoBlock struct {
	Version      int                `bson:"version"`
	Time         string             `bson:"time"`
	Index        int64              `bson:"index"`
	PublicKey    string             `bson:"public_key"`
	PrevHash     string             `bson:"prevHash"`
	Nonce        string             `bson:"nonce"`
	SpecialMin   bool               `bson:"special_min"`
	Target       string             `bson:"target"`
	Transactions []mongoTransaction `bson:"transactions"`
	Hash         string             `bson:"hash"`
	MerkleRoot   string             `bson:"merkleRoot"`
	Signature    string             `bson:"id"`
	Header       string             `bson:"header"`
}

func toMongo(b *block.Block) mongoBlock {
	txns := make([]mongoTransaction, len(b.Transactions))
	for i, t := range b.Transactions {
		ins := make([]mongoInput, len(t.Inputs))
		for j, in := range t.Inputs {
			ins[j] = mongoInput{ID: in.ID, ExternalPublicKey: in.ExternalPublicKey}
		}
		outs := make([]mongoOutput, len(t.Outputs))
		for j, o := range t.Outputs {
			outs[j] = mongoOutput{To: o.To, Value: o.Value.String()}
		}
		txns[i] = mongoTransaction{
			PublicKey: t.PublicKey, Time: t.Time, Fee: t.Fee.String(),
			Relationship: t.Relationship, DHPublicKey: t.DHPublicKey, RID: t.RID,
			Inputs: ins, Outputs: outs, Hash: t.Hash, ID: t.ID, Coinbase: t.Coinbase,
		}
	}
	return mongoBlock{
		Version: b.Version, Time: b.Time, Index: b.Index, PublicKey: b.PublicKey,
		PrevHash: b.PrevHash, Nonce: b.Nonce, SpecialMin: b.SpecialMin,
		Target: b.TargetHex(), Transactions: txns, Hash: b.Hash,
		MerkleRoot: b.MerkleRoot, Signature: b.Signature, Header: b.Header,
	}
}

func fromMongo(m mongoBlock) (*block.Block, error) {
	target, ok := new(big.Int).SetString(m.Target, 16)
	if !ok {
		return nil, errors.New("mongostore: malformed target")
	}
	txns := make([]*txn.Transaction, len(m.Transactions))
	for i, mt := range m.Transactions {
		fee, err := amount.Parse(mt.Fee)
		if err != nil {
			return nil, err
		}
		ins := make([]txn.Input, len(mt.Inputs))
		for j, in := range mt.Inputs {
			ins[j] = txn.Input{ID: in.ID, ExternalPublicKey: in.ExternalPublicKey}
		}
		outs := make([]txn.Output, len(mt.Outputs))
		for j, o := range mt.Outputs {
			val, err := amount.Parse(o.Value)
			if err != nil {
				return nil, err
			}
			outs[j] = txn.Output{To: o.To, Value: val}
		}
		txns[i] = &txn.Transaction{
			PublicKey: mt.PublicKey, Time: mt.Time, Fee: fee,
			Relationship: mt.Relationship, DHPublicKey: mt.DHPublicKey, RID: mt.RID,
			Inputs: ins, Outputs: outs, Hash: mt.Hash, ID: mt.ID, Coinbase: mt.Coinbase,
		}
	}
	return &block.Block{
		Version: m.Version, Time: m.Time, Index: m.Index, PublicKey: m.PublicKey,
		PrevHash: m.PrevHash, Nonce: m.Nonce, SpecialMin: m.SpecialMin, Target: target,
		Transactions: txns, Hash: m.Hash, MerkleRoot: m.MerkleRoot,
		Signature: m.Signature, Header: m.Header,
	}, nil
}

func wrapErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

// Append implements store.BlockStore.
func (s *Store) Append(ctx context.Context, b *block.Block) error {
	tip, err := s.Tip(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if tip == nil {
		if b.Index != 0 {
			return store.ErrOrphanBlock
		}
	} else if b.PrevHash != tip.Hash {
		return store.ErrOrphanBlock
	}
	_, err = s.blocks.InsertOne(ctx, toMongo(b))
	return err
}

// Tip implements store.BlockStore.
func (s *Store) Tip(ctx context.Context) (*block.Block, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "index", Value: -1}})
	var m mongoBlock
	if err := s.blocks.FindOne(ctx, bson.M{}, opts).Decode(&m); err != nil {
		return nil, wrapErr(err)
	}
	return fromMongo(m)
}

// ByIndex implements store.BlockStore.
func (s *Store) ByIndex(ctx context.Context, h int64) (*block.Block, error) {
	var m mongoBlock
	if err := s.blocks.FindOne(ctx, bson.M{"index": h}).Decode(&m); err != nil {
		return nil, wrapErr(err)
	}
	return fromMongo(m)
}

// ByHash implements store.BlockStore.
func (s *Store) ByHash(ctx context.Context, hash string) (*block.Block, error) {
	var m mongoBlock
	if err := s.blocks.FindOne(ctx, bson.M{"hash": hash}).Decode(&m); err != nil {
		return nil, wrapErr(err)
	}
	return fromMongo(m)
}

// Range implements store.BlockStore.
func (s *Store) Range(ctx context.Context, lo, hi int64, reverse bool) ([]*block.Block, error) {
	sortDir := 1
	if reverse {
		sortDir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "index", Value: sortDir}})
	cur, err := s.blocks.Find(ctx, bson.M{"index": bson.M{"$gte": lo, "$lt": hi}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var result []*block.Block
	for cur.Next(ctx) {
		var m mongoBlock
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		b, err := fromMongo(m)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, cur.Err()
}

// TxByID implements store.BlockStore.
func (s *Store) TxByID(ctx context.Context, id string) (*block.Block, int, error) {
	var m mongoBlock
	err := s.blocks.FindOne(ctx, bson.M{"transactions.hash": id}).Decode(&m)
	if err != nil {
		return nil, 0, wrapErr(err)
	}
	b, err := fromMongo(m)
	if err != nil {
		return nil, 0, err
	}
	for i, t := range b.Transactions {
		if t.Hash == id {
			return b, i, nil
		}
	}
	return nil, 0, store.ErrNotFound
}

// ContainsInput implements store.BlockStore.
func (s *Store) ContainsInput(ctx context.Context, inputID, publicKey string) (bool, error) {
	filter := bson.M{
		"transactions": bson.M{
			"$elemMatch": bson.M{
				"public_key": publicKey,
				"inputs":     bson.M{"$elemMatch": bson.M{"id": inputID}},
			},
		},
	}
	count, err := s.blocks.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	externalFilter := bson.M{
		"transactions.inputs": bson.M{
			"$elemMatch": bson.M{"id": inputID, "externalPublicKey": publicKey},
		},
	}
	count, err = s.blocks.CountDocuments(ctx, externalFilter, options.Count().SetLimit(1))
	return count > 0, err
}

// Height implements store.BlockStore.
func (s *Store) Height(ctx context.Context) (int64, error) {
	tip, err := s.Tip(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return tip.Index, nil
}

var _ store.BlockStore = (*Store)(nil)
