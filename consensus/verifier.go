package consensus

import (
	"context"

	"github.com/coraxum/coraxumd/address"
	"github.com/coraxum/coraxumd/amount"
	"github.com/coraxum/coraxumd/block"
	"github.com/coraxum/coraxumd/chaincfg"
	"github.com/coraxum/coraxumd/store"
	"github.com/coraxum/coraxumd/txn"
	"github.com/coraxum/coraxumd/utxo"
)

// BlockVerifier performs the full acceptance check for a candidate block
// against the current tip, per §4.9. It never mutates the store; Append is
// the caller's responsibility once Verify returns nil.
//
// It does not recompute or compare B.target against DifficultyEngine: the
// source this behavior is grounded on never does either, accepting the
// block's declared target as-is and relying on MeetsTarget plus the
// network's own rejection of undersized-difficulty chains at the orphan
// check. DifficultyEngine's output feeds BlockFactory instead, at
// assembly time.
type BlockVerifier struct {
	store store.BlockStore
	utxo  *utxo.Index
}

// NewBlockVerifier returns a BlockVerifier reading chain state from s and
// the unspent set from idx.
func NewBlockVerifier(s store.BlockStore, idx *utxo.Index) *BlockVerifier {
	return &BlockVerifier{store: s, utxo: idx}
}

// Verify runs the seven checks from §4.9 against b, returning the first
// failing RuleError, or nil if b is acceptable.
func (v *BlockVerifier) Verify(ctx context.Context, b *block.Block) error {
	if b.Version != chaincfg.VersionForHeight(b.Index) {
		return ruleError(ErrInvalidVersion, "block version does not match height schedule")
	}

	if len(b.Nonce) == 0 || len(b.Nonce) > chaincfg.MaxNonceLen {
		return ruleError(ErrInvalidNonce, "nonce is empty or exceeds MaxNonceLen")
	}

	if b.Index == 0 {
		if b.PrevHash != "" {
			return ruleError(ErrOrphanBlock, "genesis block must have an empty prev_hash")
		}
	} else {
		tip, err := v.store.Tip(ctx)
		if err != nil {
			return err
		}
		if b.PrevHash != tip.Hash {
			return ruleError(ErrOrphanBlock, "prev_hash does not match current tip")
		}
	}

	if got := b.ComputeMerkleRoot(); got != b.MerkleRoot {
		return ruleError(ErrInvalidMerkleRoot, "recomputed merkle root does not match")
	}

	if got := b.ComputeHash(); got != b.Hash {
		return ruleError(ErrInvalidBlockHash, "recomputed hash does not match stored hash")
	}
	if !b.MeetsTarget() {
		return ruleError(ErrInvalidBlockHash, "hash does not satisfy target")
	}

	if err := verifyBlockSignature(b); err != nil {
		return ruleError(ErrInvalidSignature, err.Error())
	}

	coinbaseSum := b.CoinbaseOutputSum()
	feeSum := b.NonCoinbaseFeeSum()
	reward := amount.FromScaledInt64(chaincfg.BlockReward(b.Index))
	expected := reward.Add(feeSum)
	if !coinbaseSum.Equal(expected) {
		return ruleError(ErrInvalidReward, "coinbase output sum does not equal reward plus fees")
	}

	for _, t := range b.Transactions {
		if t.Coinbase {
			continue
		}
		if err := v.verifyTransactionInputs(ctx, t); err != nil {
			return err
		}
	}

	txn.EvictCommitted(b.TransactionHashes())
	return nil
}

// verifyTransactionInputs re-checks t's inputs against UtxoIndex (address
// derived from its public_key, or the external public key for external
// inputs) and for intra-transaction reuse, per §4.9 step 6.
func (v *BlockVerifier) verifyTransactionInputs(ctx context.Context, t *txn.Transaction) error {
	if err := t.ValidateStructure(); err != nil {
		return ruleError(ErrInvalidTransaction, SubCauseDuplicateInput)
	}
	senderAddr, err := t.SenderAddress()
	if err != nil {
		return ruleError(ErrInvalidTransaction, SubCauseBadSignature)
	}
	for _, in := range t.Inputs {
		owner := senderAddr
		if in.External() {
			a, err := address.FromPublicKeyHex(in.ExternalPublicKey)
			if err != nil {
				return ruleError(ErrInvalidTransaction, SubCauseUnknownInput)
			}
			owner = a
		}
		unspent, err := v.utxo.IsUnspent(ctx, owner, in.ID)
		if err != nil {
			return err
		}
		if !unspent {
			return ruleError(ErrInvalidTransaction, SubCauseUnknownInput)
		}
	}
	return nil
}
