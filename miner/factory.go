// Package miner implements BlockFactory (component C7): candidate
// transaction selection, double-spend filtering, coinbase construction,
// and the cancellable proof-of-work search, grounded on BlockFactory in
// original_source/yadacoin/block.py.
package miner

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/coraxum/coraxumd/address"
	"github.com/coraxum/coraxumd/amount"
	"github.com/coraxum/coraxumd/block"
	"github.com/coraxum/coraxumd/blockwire"
	"github.com/coraxum/coraxumd/chaincfg"
	"github.com/coraxum/coraxumd/consensus"
	"github.com/coraxum/coraxumd/store"
	"github.com/coraxum/coraxumd/txn"
	"github.com/coraxum/coraxumd/utxo"
)

// ErrNoWinningNonce is returned by Mine when the search range is exhausted
// without any hash meeting target; the caller should widen the range or
// accept the best-seen fallback the original's search loop keeps.
var ErrNoWinningNonce = errors.New("miner: no nonce in range met target")

// BlockFactory assembles candidate blocks for a given producer key and
// drives the nonce search against them.
type BlockFactory struct {
	store store.BlockStore
	utxo  *utxo.Index
	diff  *consensus.DifficultyEngine
}

// NewBlockFactory returns a BlockFactory reading chain state from s and the
// unspent set from idx, retargeting against net.
func NewBlockFactory(s store.BlockStore, idx *utxo.Index, net chaincfg.Network) *BlockFactory {
	return &BlockFactory{store: s, utxo: idx, diff: consensus.NewDifficultyEngine(s, net)}
}

// Assemble selects the subset of candidates that pass structural
// verification and do not double-spend against the unspent set or each
// other, builds the coinbase transaction paying producerPubHex the reward
// plus accumulated fees, and returns a block template with everything but
// Nonce, Hash, and Signature populated — Mine and Finalize complete it.
func (f *BlockFactory) Assemble(ctx context.Context, candidates []*txn.Transaction, producerPubHex string, producerPriv *secp256k1.PrivateKey, index int64, blockTime int64) (*block.Block, error) {
	var prevHash string
	if index == 0 {
		prevHash = ""
	} else {
		tip, err := f.store.Tip(ctx)
		if err != nil {
			return nil, err
		}
		prevHash = tip.Hash
	}

	accepted, feeSum, err := f.selectCandidates(ctx, candidates)
	if err != nil {
		return nil, err
	}

	producerAddr, err := address.FromPublicKeyHex(producerPubHex)
	if err != nil {
		return nil, err
	}
	reward := amount.FromScaledInt64(chaincfg.BlockReward(index))
	coinbase := &txn.Transaction{
		PublicKey: producerPubHex,
		Time:      strconv.FormatInt(blockTime, 10),
		Outputs: []txn.Output{
			{To: producerAddr, Value: reward.Add(feeSum)},
		},
	}
	if err := coinbase.Sign(producerPriv); err != nil {
		return nil, err
	}
	coinbase.ClassifyCoinbase(producerPubHex)

	transactions := append(accepted, coinbase)

	target, err := f.diff.TargetForHeight(ctx, index, blockTime)
	if err != nil {
		return nil, err
	}

	b := &block.Block{
		Version:      chaincfg.VersionForHeight(index),
		Time:         strconv.FormatInt(blockTime, 10),
		Index:        index,
		PublicKey:    producerPubHex,
		PrevHash:     prevHash,
		Target:       target,
		Transactions: transactions,
	}
	b.MerkleRoot = b.ComputeMerkleRoot()
	b.Header = b.BuildHeader()
	return b, nil
}

// selectCandidates filters candidates to those that verify, carry no
// duplicate signature, and spend only inputs still unspent per address
// (rejecting any transaction that reuses an input already claimed by a
// transaction earlier in this same candidate set).
func (f *BlockFactory) selectCandidates(ctx context.Context, candidates []*txn.Transaction) ([]*txn.Transaction, amount.Amount, error) {
	tipHeight, err := f.store.Height(ctx)
	if err != nil {
		return nil, amount.Zero, err
	}

	usedIDs := make(map[string]struct{})
	claimedInputs := make(map[string]struct{}) // "address|inputID"
	var accepted []*txn.Transaction
	feeSum := amount.Zero

	for _, t := range candidates {
		if _, dup := usedIDs[t.ID]; dup {
			continue
		}
		if err := t.Verify(); err != nil {
			continue
		}
		if err := t.ValidateStructure(); err != nil {
			continue
		}

		senderAddr, err := t.SenderAddress()
		if err != nil {
			continue
		}

		if t.Relationship != "" {
			tooOld, err := f.relationshipInputsTooOld(ctx, t, tipHeight)
			if err != nil {
				return nil, amount.Zero, err
			}
			if tooOld {
				continue
			}
		}

		failed := false
		for _, in := range t.Inputs {
			owner := senderAddr
			if in.External() {
				owner, err = address.FromPublicKeyHex(in.ExternalPublicKey)
				if err != nil {
					failed = true
					break
				}
			}
			key := owner + "|" + in.ID
			if _, claimed := claimedInputs[key]; claimed {
				failed = true
				break
			}
			unspent, err := f.utxo.IsUnspent(ctx, owner, in.ID)
			if err != nil {
				return nil, amount.Zero, err
			}
			if !unspent {
				failed = true
				break
			}
		}
		if failed {
			continue
		}

		for _, in := range t.Inputs {
			owner := senderAddr
			if in.External() {
				owner, _ = address.FromPublicKeyHex(in.ExternalPublicKey)
			}
			claimedInputs[owner+"|"+in.ID] = struct{}{}
		}
		usedIDs[t.ID] = struct{}{}
		accepted = append(accepted, t)
		feeSum = feeSum.Add(t.Fee)
	}

	return accepted, feeSum, nil
}

// relationshipInputsTooOld reports whether any of t's inputs were mined
// more than chaincfg.RetargetPeriod blocks behind tipHeight. Grounded on
// spec.md §4.8 step 2's domain rule bounding how far back a non-FastGraph
// relationship transaction may reach for its inputs; an input this code
// cannot locate is left to the ordinary unknown-input check below rather
// than treated as "too old" here.
func (f *BlockFactory) relationshipInputsTooOld(ctx context.Context, t *txn.Transaction, tipHeight int64) (bool, error) {
	for _, in := range t.Inputs {
		b, _, err := f.store.TxByID(ctx, in.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return false, err
		}
		if tipHeight-b.Index > chaincfg.RetargetPeriod {
			return true, nil
		}
	}
	return false, nil
}

// miningResult is the best (nonce, hash) pair seen so far during a Mine
// call, tracked so a search that never meets target still returns the
// closest attempt rather than nothing, matching the original's behavior.
type miningResult struct {
	have    bool
	nonce   int64
	hashHex string
	hashInt *big.Int
}

// Mine searches nonces in [lo, hi) for one whose double-SHA-256 hash of
// header meets target, or satisfies the legacy special_min bypass. It is
// cancellable via ctx, checked periodically since the search can run for a
// long time off the request path. If no nonce in range meets target, it
// returns the closest attempt alongside ErrNoWinningNonce, matching the
// original search loop's best-seen fallback.
func (f *BlockFactory) Mine(ctx context.Context, header string, target *big.Int, lo, hi int64, specialMin bool) (nonce string, hash string, err error) {
	var best miningResult
	for n := lo; n < hi; n++ {
		if n%4096 == 0 {
			select {
			case <-ctx.Done():
				return "", "", ctx.Err()
			default:
			}
		}
		hashesSearched.Inc()

		nonceStr := strconv.FormatInt(n, 10)
		h := blockwire.HashFromHeader(header, nonceStr)
		if specialMin {
			bestHashLeadingZeros.Set(float64(leadingHexZeros(h)))
			return nonceStr, h, nil
		}
		if blockwire.HashMeetsTarget(h, target) {
			bestHashLeadingZeros.Set(float64(leadingHexZeros(h)))
			return nonceStr, h, nil
		}

		hashInt, ok := new(big.Int).SetString(h, 16)
		if ok && (!best.have || hashInt.Cmp(best.hashInt) < 0) {
			best = miningResult{have: true, nonce: n, hashHex: h, hashInt: hashInt}
		}
	}
	if !best.have {
		return "", "", ErrNoWinningNonce
	}
	bestHashLeadingZeros.Set(float64(leadingHexZeros(best.hashHex)))
	return strconv.FormatInt(best.nonce, 10), best.hashHex, ErrNoWinningNonce
}

// Finalize sets b.Nonce and b.Hash to the values Mine produced and signs
// b.Hash with priv, populating b.Signature.
func (f *BlockFactory) Finalize(b *block.Block, nonce, hash string, priv *secp256k1.PrivateKey) error {
	b.Nonce = nonce
	b.Hash = hash
	hashBytes, err := hex.DecodeString(hash)
	if err != nil {
		return err
	}
	sig := ecdsa.Sign(priv, hashBytes)
	b.Signature = base64.StdEncoding.EncodeToString(sig.Serialize())
	return nil
}
