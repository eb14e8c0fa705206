// Package blockwire implements the block header serialization, nonce
// substitution, double-SHA-256 hashing, and Merkle root construction that
// HashEngine (component C2) is responsible for. It depends on nothing but
// the standard library and chainhash (for the byte-reversed display of a
// digest), matching the "pure" layer the design
// notes call for: header format and hashing never reach into storage or
// the UTXO index.
package blockwire

import (
	"crypto/sha256"
	"math/big"
	"strconv"
	"strings"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

// noncePlaceholder is embedded verbatim in every stored header string; the
// nonce is substituted into it to produce each hashing trial. Changing this
// format breaks backward compatibility with already-stored block headers.
const noncePlaceholder = "{nonce}"

// HeaderFields carries exactly the block attributes the header string is
// built from, decoupled from the Block type itself to avoid a dependency
// cycle between blockwire and the txn/block layers above it.
type HeaderFields struct {
	Version    int
	Time       string
	PublicKey  string
	Index      int64
	PrevHash   string
	SpecialMin bool
	Target     *big.Int
	MerkleRoot string
}

// BuildHeader renders the header template for f, including the literal
// "{nonce}" placeholder, following the version-dependent layouts: versions
// below 3 append special_min and the target as a base-10 integer string;
// version 3 and above drop special_min and render the target as a
// zero-padded 64-hex-digit string.
//
// special_min renders as the capitalized strings "True"/"False", matching
// the bool stringification the chain was originally mined with. The stored
// genesis header and every header mined against it hash correctly only
// under this exact rendering, not a 0/1 digit.
func BuildHeader(f HeaderFields) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(f.Version))
	b.WriteString(f.Time)
	b.WriteString(f.PublicKey)
	b.WriteString(strconv.FormatInt(f.Index, 10))
	b.WriteString(f.PrevHash)
	b.WriteString(noncePlaceholder)
	if f.Version < 3 {
		if f.SpecialMin {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
		b.WriteString(f.Target.String())
	} else {
		b.WriteString(paddedHexTarget(f.Target.Text(16)))
	}
	b.WriteString(f.MerkleRoot)
	return b.String()
}

// paddedHexTarget left-pads a hex target string to 64 characters.
func paddedHexTarget(hex string) string {
	if len(hex) >= 64 {
		return hex
	}
	return strings.Repeat("0", 64-len(hex)) + hex
}

// HashFromHeader substitutes nonce into header's placeholder and returns
// the double-SHA-256 digest, displayed in the little-endian (byte-reversed)
// hex convention the specification requires.
func HashFromHeader(header, nonce string) string {
	preimage := strings.Replace(header, noncePlaceholder, nonce, 1)
	digest := doubleSHA256([]byte(preimage))
	h := chainhash.Hash(digest)
	return h.String()
}

func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}
