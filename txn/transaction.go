// Package txn implements Transaction (component C3): canonical hashing,
// secp256k1 signature binding, and coinbase classification. It depends on
// amount for decimal-correct values and address for P2PKH derivation, but
// nothing above it in the layering — BlockStore, UtxoIndex, and the
// assembly/verification layers build on top of this package, never the
// reverse.
package txn

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/coraxum/coraxumd/address"
	"github.com/coraxum/coraxumd/amount"
)

// ErrBadSignature is returned by Verify when id does not verify against the
// canonical hash under the transaction's declared public key.
var ErrBadSignature = errors.New("txn: signature does not verify")

// Output pays value to a P2PKH address.
type Output struct {
	To    string
	Value amount.Amount
}

// Input references the id of an output-producing transaction. An external
// input additionally carries its own public key, spending from a different
// address than the transaction's own public_key.
type Input struct {
	ID                string
	ExternalPublicKey string
}

// External reports whether in carries its own spending key rather than
// using the transaction's public_key.
func (in Input) External() bool {
	return in.ExternalPublicKey != ""
}

// Transaction is the unit of value transfer described in the data model:
// a set of inputs consuming prior unspent outputs, a set of outputs
// producing new ones, a fee, and a signature over the whole.
type Transaction struct {
	PublicKey    string
	Time         string
	Fee          amount.Amount
	Relationship string
	DHPublicKey  string
	RID          string
	Inputs       []Input
	Outputs      []Output

	// Hash and ID are populated by Sign; Verify recomputes Hash and checks
	// ID against it. Callers ingesting a transaction from the wire should
	// set both directly and call Verify rather than Sign.
	Hash string
	ID   string

	// Coinbase is a classification flag computed once at ingestion time
	// via ClassifyCoinbase, cached for O(1) access during verification.
	Coinbase bool
}

// CanonicalHash serializes t's content fields in a fixed order and returns
// the hex-encoded SHA-256 digest. The signature (ID) is never part of the
// hashed content — it is computed over the hash, not included in it.
func (t *Transaction) CanonicalHash() string {
	var b strings.Builder
	b.WriteString(t.PublicKey)
	b.WriteString(t.Time)
	b.WriteString(t.Fee.String())
	b.WriteString(t.DHPublicKey)
	b.WriteString(t.RID)
	b.WriteString(t.Relationship)
	for _, in := range t.Inputs {
		b.WriteString(in.ID)
		b.WriteString(in.ExternalPublicKey)
	}
	for _, out := range t.Outputs {
		b.WriteString(out.To)
		b.WriteString(out.Value.String())
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Sign recomputes t.Hash from its content and signs it with priv, setting
// t.ID to the base64-encoded DER signature.
func (t *Transaction) Sign(priv *secp256k1.PrivateKey) error {
	t.Hash = t.CanonicalHash()
	hashBytes, err := hex.DecodeString(t.Hash)
	if err != nil {
		return err
	}
	sig := ecdsa.Sign(priv, hashBytes)
	t.ID = base64.StdEncoding.EncodeToString(sig.Serialize())
	return nil
}

// Verify recomputes the canonical hash from t's current content and checks
// t.ID against it under t.PublicKey. It does not consult the UTXO index or
// the double-spend rules; those are UtxoIndex/BlockFactory concerns layered
// above this package.
func (t *Transaction) Verify() error {
	wantHash := t.CanonicalHash()
	hashBytes, err := hex.DecodeString(wantHash)
	if err != nil {
		return err
	}
	pubKeyBytes, err := hex.DecodeString(t.PublicKey)
	if err != nil {
		return err
	}
	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return err
	}
	sigBytes, err := base64.StdEncoding.DecodeString(t.ID)
	if err != nil {
		return err
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return err
	}
	if !defaultSigCache.Exists(wantHash, sig, pubKey) {
		if !sig.Verify(hashBytes, pubKey) {
			return ErrBadSignature
		}
		defaultSigCache.Add(wantHash, sig, pubKey)
	}
	t.Hash = wantHash
	return nil
}

// ClassifyCoinbase reports, and caches on t.Coinbase, whether t is the
// block producer's coinbase: exactly one output paying the P2PKH address of
// blockPublicKey, no inputs, and no relationship.
func (t *Transaction) ClassifyCoinbase(blockPublicKey string) bool {
	if len(t.Inputs) != 0 || t.Relationship != "" || len(t.Outputs) != 1 {
		t.Coinbase = false
		return false
	}
	producerAddr, err := address.FromPublicKeyHex(blockPublicKey)
	if err != nil {
		t.Coinbase = false
		return false
	}
	t.Coinbase = t.Outputs[0].To == producerAddr
	return t.Coinbase
}

// OutputSum returns the sum of t's output values.
func (t *Transaction) OutputSum() amount.Amount {
	vals := make([]amount.Amount, len(t.Outputs))
	for i, o := range t.Outputs {
		vals[i] = o.Value
	}
	return amount.Sum(vals...)
}

// SenderAddress derives the P2PKH address inputs are spent from.
func (t *Transaction) SenderAddress() (string, error) {
	return address.FromPublicKeyHex(t.PublicKey)
}

// hasDuplicateInput reports whether t references the same input id twice.
func (t *Transaction) hasDuplicateInput() bool {
	seen := make(map[string]struct{}, len(t.Inputs))
	for _, in := range t.Inputs {
		if _, ok := seen[in.ID]; ok {
			return true
		}
		seen[in.ID] = struct{}{}
	}
	return false
}

// ValidateStructure checks the transaction-local invariants that do not
// require consulting the UTXO index: no duplicate input within the
// transaction, and outputs plus fee must be non-negative.
func (t *Transaction) ValidateStructure() error {
	if t.hasDuplicateInput() {
		return errors.New("txn: duplicate input id within transaction")
	}
	if t.Fee.IsNegative() {
		return errors.New("txn: negative fee")
	}
	for _, out := range t.Outputs {
		if out.Value.IsNegative() {
			return errors.New("txn: negative output value")
		}
	}
	return nil
}
