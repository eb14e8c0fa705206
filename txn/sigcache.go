package txn

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/dchest/siphash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// shortHashKeySize is the key size required by SipHash-2-4.
const shortHashKeySize = 16

type sigCacheEntry struct {
	sig    *ecdsa.Signature
	pubKey *secp256k1.PublicKey
}

// SigCache caches the result of a verified transaction signature, keyed by
// the transaction's canonical hash. Transaction.Verify consults it, so a
// pending transaction that BlockFactory re-evaluates across several
// Assemble calls pays for ECDSA verification only once. BlockVerifier does
// not re-verify transaction signatures.
//
// Entries evict randomly once the cache is full, same as the signature
// cache it's adapted from: the iteration order of a Go map is unspecified
// but not attacker-controllable without a hash preimage, so a random victim
// is as good as any cheaper policy.
type SigCache struct {
	mu         sync.RWMutex
	valid      map[string]sigCacheEntry
	maxEntries uint
	hashKey    [shortHashKeySize]byte
}

// sigCacheMaxEntries bounds the default cache Transaction.Verify shares
// across every call, sized the same way dcrd sizes its mempool sigCache.
const sigCacheMaxEntries = 100000

// defaultSigCache is the cache Transaction.Verify consults so a
// transaction verified more than once (for example across repeated
// BlockFactory.Assemble calls) only pays for ECDSA verification once. If
// the process's random source is unavailable at init, it degrades to a
// cache that never hits rather than failing transaction verification
// outright.
var defaultSigCache = newDefaultSigCache()

func newDefaultSigCache() *SigCache {
	c, err := NewSigCache(sigCacheMaxEntries)
	if err != nil {
		return &SigCache{valid: make(map[string]sigCacheEntry)}
	}
	return c
}

// NewSigCache returns a cache that holds at most maxEntries verified
// signatures.
func NewSigCache(maxEntries uint) (*SigCache, error) {
	var key [shortHashKeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, err
	}
	return &SigCache{
		valid:      make(map[string]sigCacheEntry, maxEntries),
		maxEntries: maxEntries,
		hashKey:    key,
	}, nil
}

// Exists reports whether sig over txHash under pubKey was already recorded
// as valid.
func (c *SigCache) Exists(txHash string, sig *ecdsa.Signature, pubKey *secp256k1.PublicKey) bool {
	c.mu.RLock()
	entry, ok := c.valid[txHash]
	c.mu.RUnlock()
	return ok && entry.pubKey.IsEqual(pubKey) && entry.sig.IsEqual(sig)
}

// Add records sig over txHash under pubKey as valid, evicting a random
// entry first if the cache is at capacity.
func (c *SigCache) Add(txHash string, sig *ecdsa.Signature, pubKey *secp256k1.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries == 0 {
		return
	}
	if uint(len(c.valid)+1) > c.maxEntries {
		for k := range c.valid {
			delete(c.valid, k)
			break
		}
	}
	c.valid[txHash] = sigCacheEntry{sig, pubKey}
}

// shortHash derives a 64-bit SipHash-2-4 digest of s under the cache's
// random key, for eviction bookkeeping that doesn't require retaining the
// full hash string.
func (c *SigCache) shortHash(s string) uint64 {
	k0 := binary.LittleEndian.Uint64(c.hashKey[0:8])
	k1 := binary.LittleEndian.Uint64(c.hashKey[8:16])
	return siphash.Hash(k0, k1, []byte(s))
}

// EvictCommitted drops txHashes from the default signature cache, called
// by BlockVerifier once a block lands so the cache doesn't carry
// verified-but-now-irrelevant mempool signatures indefinitely.
func EvictCommitted(txHashes []string) {
	defaultSigCache.evictCommitted(txHashes)
}

// evictCommitted drops every cached entry whose hash belongs to a
// newly-committed block.
func (c *SigCache) evictCommitted(txHashes []string) {
	if len(txHashes) == 0 {
		return
	}
	committed := make(map[uint64]struct{}, len(txHashes))
	for _, h := range txHashes {
		committed[c.shortHash(h)] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for h := range c.valid {
		if _, ok := committed[c.shortHash(h)]; ok {
			delete(c.valid, h)
		}
	}
}
