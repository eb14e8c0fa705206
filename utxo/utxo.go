// Package utxo implements UtxoIndex (component C5): derivation of unspent
// outputs per address from the block log, with a TTL-cached, re-derivable
// layer on top so repeated balance and spendability queries don't rescan
// the whole log.
package utxo

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/coraxum/coraxumd/address"
	"github.com/coraxum/coraxumd/amount"
	"github.com/coraxum/coraxumd/block"
	"github.com/coraxum/coraxumd/fastgraph"
	"github.com/coraxum/coraxumd/store"
	"github.com/coraxum/coraxumd/txn"
)

// UnspentCacheEntry is a derived fact about one transaction's relationship
// to an address, never a source of truth: it is re-derivable from the
// block log at any time and may be dropped freely (e.g. on reorg).
type UnspentCacheEntry struct {
	Address   string
	TxnID     string
	Height    int64
	BlockHash string
	Spent     bool
	Txn       *txn.Transaction
	CacheTime time.Time
}

// FastgraphPool is the subset of pending off-chain transaction storage the
// index needs: it must be able to tell whether an id has already been
// spent provisionally by a FastGraph transaction.
type FastgraphPool interface {
	// PendingByOutputAddress returns every pending FastGraph paying address.
	PendingByOutputAddress(address string) []*fastgraph.FastGraph
	// SpendsInput reports whether any pending FastGraph owned by publicKey
	// consumes inputID.
	SpendsInput(publicKey, inputID string) bool
}

type addressCache struct {
	entries   []UnspentCacheEntry
	watermark int64 // highest height scanned so far, -1 if never scanned
}

// Index derives and caches unspent outputs from a BlockStore.
type Index struct {
	store         store.BlockStore
	fastgraph     FastgraphPool
	cache         *ttlcache.Cache[string, *addressCache]
	relationships *RelationshipCache
}

// New returns an Index over store, with unspent-cache rows evicted after
// ttl of disuse. A zero ttl disables eviction.
func New(s store.BlockStore, fg FastgraphPool, ttl time.Duration) *Index {
	opts := []ttlcache.Option[string, *addressCache]{}
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, *addressCache](ttl))
	}
	c := ttlcache.New(opts...)
	go c.Start()
	return &Index{store: s, fastgraph: fg, cache: c, relationships: newRelationshipCache(ttl)}
}

// Close stops the cache's background janitor goroutines.
func (idx *Index) Close() {
	idx.cache.Stop()
	idx.relationships.stop()
}

func (idx *Index) getOrCreateCache(addr string) *addressCache {
	item := idx.cache.Get(addr)
	if item != nil {
		return item.Value()
	}
	ac := &addressCache{watermark: -1}
	idx.cache.Set(addr, ac, ttlcache.DefaultTTL)
	return ac
}

// Refresh performs the two-phase scan described in §4.5, extending the
// cached view for addr up to the current tip. It is idempotent: calling it
// repeatedly without new blocks is a no-op beyond the tip check.
func (idx *Index) Refresh(ctx context.Context, addr string) error {
	ac := idx.getOrCreateCache(addr)

	tipHeight, err := idx.store.Height(ctx)
	if err != nil {
		return err
	}
	if tipHeight < 0 || ac.watermark >= tipHeight {
		return nil
	}

	fromHeight := ac.watermark + 1
	if ac.watermark < 0 {
		fromHeight = 0
	}

	blocks, err := idx.store.Range(ctx, fromHeight, tipHeight+1, false)
	if err != nil {
		return err
	}

	byID := make(map[string]int, len(ac.entries))
	for i, e := range ac.entries {
		byID[e.TxnID] = i
	}

	for _, b := range blocks {
		for _, t := range b.Transactions {
			matchesReceive := false
			for _, out := range t.Outputs {
				if out.To == addr {
					matchesReceive = true
					break
				}
			}
			if !matchesReceive {
				continue
			}
			entry := UnspentCacheEntry{
				Address:   addr,
				TxnID:     t.Hash,
				Height:    b.Index,
				BlockHash: b.Hash,
				Spent:     false,
				Txn:       t,
				CacheTime: cacheTimestamp(),
			}
			if i, ok := byID[t.Hash]; ok {
				ac.entries[i] = entry
			} else {
				byID[t.Hash] = len(ac.entries)
				ac.entries = append(ac.entries, entry)
			}
		}
	}

	reversePublicKey, err := idx.discoverReversePublicKey(ctx, addr, blocks, tipHeight)
	if err != nil {
		return err
	}

	if reversePublicKey != "" {
		for _, b := range blocks {
			for _, t := range b.Transactions {
				owner := t.PublicKey
				if owner != reversePublicKey {
					continue
				}
				for _, in := range t.Inputs {
					spendOwner := owner
					if in.External() {
						spendOwner = in.ExternalPublicKey
					}
					if spendOwner != reversePublicKey {
						continue
					}
					if i, ok := byID[in.ID]; ok {
						ac.entries[i].Spent = true
					}
				}
			}
		}
	}

	ac.watermark = tipHeight
	return nil
}

// discoverReversePublicKey finds the public key that derives to addr, the
// "reverse" lookup needed to scan addr's spend side (inputs are only ever
// identified by owning public key, never by address). It first looks
// within the freshly-scanned window, then falls back to a full-history
// scan when nothing in that window identifies the key, matching spec.md
// §4.5's edge case ("if the reverse public_key is not found, all received
// outputs are reported unspent") and block.py's two-branch scan (scoped to
// the cached height first, whole-chain fallback when no reverse key has
// been cached yet).
func (idx *Index) discoverReversePublicKey(ctx context.Context, addr string, blocks []*block.Block, tipHeight int64) (string, error) {
	for _, b := range blocks {
		for _, t := range b.Transactions {
			if a, err := address.FromPublicKeyHex(t.PublicKey); err == nil && a == addr {
				return t.PublicKey, nil
			}
		}
	}

	full, err := idx.store.Range(ctx, 0, tipHeight+1, false)
	if err != nil {
		return "", err
	}
	for _, b := range full {
		for _, t := range b.Transactions {
			if a, err := address.FromPublicKeyHex(t.PublicKey); err == nil && a == addr {
				return t.PublicKey, nil
			}
		}
	}
	return "", nil
}

// UnspentOutputs returns the unspent cache rows for addr after refreshing
// it against the current tip, plus any FastGraph outputs pending receipt
// to addr that have not yet been mined into a block. FastGraph transfers
// settle off-chain before they are ever appended to the store, so a
// receive-side balance that only consulted committed blocks would miss
// value the owner can already treat as theirs.
func (idx *Index) UnspentOutputs(ctx context.Context, addr string) ([]UnspentCacheEntry, error) {
	if err := idx.Refresh(ctx, addr); err != nil {
		return nil, err
	}
	ac := idx.getOrCreateCache(addr)
	result := make([]UnspentCacheEntry, 0, len(ac.entries))
	for _, e := range ac.entries {
		if e.Spent {
			continue
		}
		if idx.fastgraph != nil && idx.fastgraph.SpendsInput(e.Txn.PublicKey, e.TxnID) {
			continue
		}
		result = append(result, e)
	}
	if idx.fastgraph != nil {
		for _, fg := range idx.fastgraph.PendingByOutputAddress(addr) {
			if fg.Base == nil {
				continue
			}
			result = append(result, UnspentCacheEntry{
				Address:   addr,
				TxnID:     fg.Base.Hash,
				Height:    -1,
				Spent:     false,
				Txn:       fg.Base,
				CacheTime: cacheTimestamp(),
			})
		}
	}
	return result, nil
}

// Balance sums the unspent outputs paid to addr.
func (idx *Index) Balance(ctx context.Context, addr string) (amount.Amount, error) {
	entries, err := idx.UnspentOutputs(ctx, addr)
	if err != nil {
		return amount.Amount{}, err
	}
	vals := make([]amount.Amount, 0, len(entries))
	for _, e := range entries {
		for _, out := range e.Txn.Outputs {
			if out.To == addr {
				vals = append(vals, out.Value)
			}
		}
	}
	return amount.Sum(vals...), nil
}

// IsUnspent reports whether txnID, an output addressed to addr, is still
// unspent according to the cache (after a refresh) and the fastgraph
// overlay.
func (idx *Index) IsUnspent(ctx context.Context, addr, txnID string) (bool, error) {
	entries, err := idx.UnspentOutputs(ctx, addr)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.TxnID == txnID {
			return true, nil
		}
	}
	return false, nil
}

// CheckDoubleSpend reports whether t reuses an input already spent by a
// prior committed transaction under the same owning public key.
func (idx *Index) CheckDoubleSpend(ctx context.Context, t *txn.Transaction) (bool, error) {
	for _, in := range t.Inputs {
		owner := t.PublicKey
		if in.External() {
			owner = in.ExternalPublicKey
		}
		spent, err := idx.store.ContainsInput(ctx, in.ID, owner)
		if err != nil {
			return false, err
		}
		if spent {
			return true, nil
		}
	}
	return false, nil
}

// cacheTimestamp exists so tests and callers never need wall-clock time
// threaded through the scan; it is the only place Refresh touches the
// clock, matching the source's single `time()` call per upsert.
func cacheTimestamp() time.Time {
	return time.Now()
}
