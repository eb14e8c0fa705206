package utxo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/coraxum/coraxumd/txn"
)

// RelationshipCache memoizes RelationshipTransactions results keyed by
// (pubKeyHex, queryHash), a thin wrapper over a ttlcache instance rather
// than the address-unspent cache above, since relationship queries are
// scoped by public key and query shape, not address. Grounded on
// blockchainutils.py's get_transactions, which persists the equivalent
// scan result in a get_transactions_cache collection keyed by
// (public_key, query, query_type) and re-scans only the blocks newer than
// the cached height-high-watermark on a miss.
type RelationshipCache struct {
	mu      sync.Mutex
	cache   *ttlcache.Cache[string, []*txn.Transaction]
	lastTip int64
}

func newRelationshipCache(ttl time.Duration) *RelationshipCache {
	opts := []ttlcache.Option[string, []*txn.Transaction]{}
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, []*txn.Transaction](ttl))
	}
	c := ttlcache.New(opts...)
	go c.Start()
	return &RelationshipCache{cache: c, lastTip: -1}
}

func (c *RelationshipCache) stop() {
	c.cache.Stop()
}

func (c *RelationshipCache) key(pubKeyHex, queryHash string) string {
	return pubKeyHex + "|" + queryHash
}

// invalidateIfStale drops every cached entry once the tip has moved past
// the height it was computed against, matching the original's per-query
// height-high-watermark check but coarsened to "the whole cache" since a
// ttlcache instance has no per-entry height field to compare against.
func (c *RelationshipCache) invalidateIfStale(tip int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tip != c.lastTip {
		c.cache.DeleteAll()
		c.lastTip = tip
	}
}

func (c *RelationshipCache) get(pubKeyHex, queryHash string) ([]*txn.Transaction, bool) {
	item := c.cache.Get(c.key(pubKeyHex, queryHash))
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (c *RelationshipCache) set(pubKeyHex, queryHash string, txs []*txn.Transaction) {
	c.cache.Set(c.key(pubKeyHex, queryHash), txs, ttlcache.DefaultTTL)
}

func relationshipQueryHash(rid string) string {
	sum := sha256.Sum256([]byte(rid))
	return hex.EncodeToString(sum[:])
}

// RelationshipTransactions returns every relationship-bearing transaction
// addressed from pubKeyHex, optionally narrowed to a single rid, caching
// the scan result by (pubKeyHex, queryHash) until the tip advances.
// Grounded on blockchainutils.py's get_transactions: a relationship-scoped
// query over the full transaction log rather than the plain unspent scan
// UnspentOutputs performs.
func (idx *Index) RelationshipTransactions(ctx context.Context, pubKeyHex, rid string) ([]*txn.Transaction, error) {
	tip, err := idx.store.Height(ctx)
	if err != nil {
		return nil, err
	}
	idx.relationships.invalidateIfStale(tip)

	queryHash := relationshipQueryHash(rid)
	if cached, ok := idx.relationships.get(pubKeyHex, queryHash); ok {
		return cached, nil
	}

	blocks, err := idx.store.Range(ctx, 0, tip+1, false)
	if err != nil {
		return nil, err
	}

	var result []*txn.Transaction
	for _, b := range blocks {
		for _, t := range b.Transactions {
			if t.Relationship == "" || t.PublicKey != pubKeyHex {
				continue
			}
			if rid != "" && t.RID != rid {
				continue
			}
			result = append(result, t)
		}
	}

	idx.relationships.set(pubKeyHex, queryHash, result)
	return result, nil
}
