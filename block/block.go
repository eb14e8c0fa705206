// Package block defines the Block data model shared by BlockStore,
// UtxoIndex, BlockFactory, and BlockVerifier. It sits one layer above
// blockwire and txn: it knows how to turn a set of transactions and header
// fields into the wire format those packages define, but has no opinion on
// where blocks come from or how they're validated.
package block

import (
	"math/big"

	"github.com/coraxum/coraxumd/amount"
	"github.com/coraxum/coraxumd/blockwire"
	"github.com/coraxum/coraxumd/txn"
)

// Block is the unit of the chain log: a header plus its transactions.
type Block struct {
	Version    int
	Time       string
	Index      int64
	PublicKey  string
	PrevHash   string
	Nonce      string
	SpecialMin bool
	Target     *big.Int

	Transactions []*txn.Transaction

	// Hash, MerkleRoot, and Signature are derived fields, populated once
	// during assembly or ingestion and re-checked by BlockVerifier rather
	// than recomputed implicitly on every access.
	Hash       string
	MerkleRoot string
	Signature  string

	// Header is the stored template string with "{nonce}" substituted out
	// only at hashing time; the raw template is preserved verbatim on the
	// struct because the wire format treats it as stable, addressable
	// state (see blockwire's placeholder-stability note).
	Header string
}

// TransactionHashes returns the hashes of b's transactions, in the order
// they're stored (not sorted — callers that need the Merkle ordering call
// blockwire.MerkleRoot directly, which sorts internally).
func (b *Block) TransactionHashes() []string {
	hashes := make([]string, len(b.Transactions))
	for i, t := range b.Transactions {
		hashes[i] = t.Hash
	}
	return hashes
}

// ComputeMerkleRoot derives the Merkle root from b's current transaction
// set without mutating b.
func (b *Block) ComputeMerkleRoot() string {
	return blockwire.MerkleRoot(b.TransactionHashes())
}

// BuildHeader renders b's header template (with the "{nonce}" placeholder
// still in place) from its current fields.
func (b *Block) BuildHeader() string {
	return blockwire.BuildHeader(blockwire.HeaderFields{
		Version:    b.Version,
		Time:       b.Time,
		PublicKey:  b.PublicKey,
		Index:      b.Index,
		PrevHash:   b.PrevHash,
		SpecialMin: b.SpecialMin,
		Target:     b.Target,
		MerkleRoot: b.MerkleRoot,
	})
}

// ComputeHash substitutes b.Nonce into b.Header and returns the resulting
// double-SHA-256 hash. It does not mutate b or consult b.Hash.
func (b *Block) ComputeHash() string {
	return blockwire.HashFromHeader(b.Header, b.Nonce)
}

// MeetsTarget reports whether b's stored hash satisfies its target, taking
// the legacy special_min bypass (versions below 3 only) into account.
func (b *Block) MeetsTarget() bool {
	if b.Version < 3 && b.SpecialMin {
		return true
	}
	return blockwire.HashMeetsTarget(b.Hash, b.Target)
}

// Coinbase returns b's coinbase transaction, or nil if none is classified.
// It only reads the cached Transaction.Coinbase flag; Coinbase does not call
// ClassifyCoinbase itself, so the flag must already be set on the
// transaction.
func (b *Block) Coinbase() *txn.Transaction {
	for _, t := range b.Transactions {
		if t.Coinbase {
			return t
		}
	}
	return nil
}

// CoinbaseOutputSum sums the coinbase transaction's outputs, or the zero
// amount if there is no coinbase.
func (b *Block) CoinbaseOutputSum() amount.Amount {
	cb := b.Coinbase()
	if cb == nil {
		return amount.New(0, 0)
	}
	return cb.OutputSum()
}

// NonCoinbaseFeeSum sums the fee field of every non-coinbase transaction.
func (b *Block) NonCoinbaseFeeSum() amount.Amount {
	vals := make([]amount.Amount, 0, len(b.Transactions))
	for _, t := range b.Transactions {
		if !t.Coinbase {
			vals = append(vals, t.Fee)
		}
	}
	return amount.Sum(vals...)
}

// TargetHex renders b.Target as the canonical 64-hex-digit lowercase,
// zero-padded wire representation.
func (b *Block) TargetHex() string {
	return blockwire.TargetHex(b.Target)
}
