// Package store defines BlockStore (component C6): the abstract
// append-only, height- and hash-keyed log of committed blocks. Concrete
// backends live in store/boltstore (embedded, single-process) and
// store/mongostore (the document store the rest of the external-interface
// surface assumes).
package store

import (
	"context"
	"errors"

	"github.com/coraxum/coraxumd/block"
)

// Sentinel errors returned by BlockStore implementations. Callers should
// compare with errors.Is, not string matching.
var (
	// ErrNotFound is returned by point queries that find nothing.
	ErrNotFound = errors.New("store: not found")

	// ErrOrphanBlock is returned by Append when the candidate's prev_hash
	// does not match the current tip's hash and the candidate is not the
	// genesis block.
	ErrOrphanBlock = errors.New("store: block does not extend the current tip")
)

// BlockStore is the append-only ordered log described in §4.6: blocks are
// appended one at a time, each extending the current tip, and are queried
// by height, by hash, by range, or by locating the transaction with a given
// id. Implementations must make Append atomic with respect to Tip: a reader
// never observes a tip update without the corresponding block already being
// retrievable by height and hash.
type BlockStore interface {
	// Append adds b to the log. It is accepted iff b.PrevHash equals the
	// current tip's hash, or b.Index == 0 and the log is empty.
	Append(ctx context.Context, b *block.Block) error

	// Tip returns the block with the greatest index, or ErrNotFound if the
	// log is empty.
	Tip(ctx context.Context) (*block.Block, error)

	// ByIndex returns the block at height h.
	ByIndex(ctx context.Context, h int64) (*block.Block, error)

	// ByHash returns the block whose hash is hash.
	ByHash(ctx context.Context, hash string) (*block.Block, error)

	// Range returns blocks with index in [lo, hi). If reverse is true they
	// are returned from hi-1 down to lo.
	Range(ctx context.Context, lo, hi int64, reverse bool) ([]*block.Block, error)

	// TxByID locates the block and transaction that produced id as their
	// own transaction hash, the lookup BlockFactory uses to find the block
	// an input's source transaction was mined in.
	TxByID(ctx context.Context, id string) (*block.Block, int, error)

	// ContainsInput reports whether any committed transaction owned by
	// publicKey already spends inputID, the primary double-spend check.
	ContainsInput(ctx context.Context, inputID, publicKey string) (bool, error)

	// Height returns the index of the tip, or -1 if the log is empty.
	Height(ctx context.Context) (int64, error)
}
