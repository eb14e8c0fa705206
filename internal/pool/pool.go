// Package pool defines the contract a mining-pool share dispatcher would
// implement against coraxumd: share submission and payout-window lookup.
// The dispatcher itself (stratum framing, share-difficulty vardiff,
// PPLNS/PPS accounting) is genuinely external to a consensus node — this
// package only pins the interface a pool operator would integrate against,
// grounded on the payout-reconciliation surface implied by
// original_source/yadacoin's get_bulk_payments handler. Nothing else in
// coraxumd (neither BlockFactory nor internal/rpc) references it.
package pool

import (
	"context"

	"github.com/coraxum/coraxumd/amount"
	"github.com/coraxum/coraxumd/block"
)

// Share is one accepted proof-of-work submission below the network target
// but above the pool's own share difficulty.
type Share struct {
	MinerAddress string
	Nonce        string
	Hash         string
	Difficulty   float64
}

// Dispatcher accepts shares from a pool's stratum front-end and reports the
// payout window currently open for a mined block, so an external payout
// process can apportion a coinbase's value across contributing miners.
type Dispatcher interface {
	// SubmitShare records s against the block currently being worked.
	// Implementations are expected to validate s.Hash against s.Difficulty
	// themselves; coraxumd's own target only gates block acceptance.
	SubmitShare(ctx context.Context, s Share) error

	// PayoutWindow returns the shares contributing to b's reward, keyed by
	// miner address, for a payout process to split b's coinbase value by.
	PayoutWindow(ctx context.Context, b *block.Block) (map[string]amount.Amount, error)
}
