// Package fastgraph implements FastGraph (component C4): a multi-signature
// wrapper granting provisional, off-chain settlement over a base
// transaction prior to block inclusion.
package fastgraph

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/coraxum/coraxumd/txn"
)

// ErrNoSignatures is returned when a FastGraph carries no wrapper
// signatures at all; a FastGraph with zero participants is never valid.
var ErrNoSignatures = errors.New("fastgraph: no wrapper signatures")

// WrapperSignature is one participant's signature over the wrapped
// transaction's own signature (txn.ID), identified by their public key.
type WrapperSignature struct {
	PublicKey string
	Signature string // base64 secp256k1 signature over Base.ID
}

// FastGraph wraps a base Transaction with an ordered list of additional
// signatures. Once integrated into a committed block, a FastGraph is
// represented purely as its Base transaction — the wrapper signatures are
// off-chain settlement evidence, not consensus-visible state.
type FastGraph struct {
	Base       *txn.Transaction
	Signatures []WrapperSignature
}

// Verify reports whether f is valid: the base transaction verifies under
// its own signature, and every wrapper signature verifies against Base.ID
// under its declared public key.
func (f *FastGraph) Verify() error {
	if f.Base == nil {
		return errors.New("fastgraph: missing base transaction")
	}
	if err := f.Base.Verify(); err != nil {
		return err
	}
	if len(f.Signatures) == 0 {
		return ErrNoSignatures
	}
	message := []byte(f.Base.ID)
	for i, ws := range f.Signatures {
		pubKeyBytes, err := hex.DecodeString(ws.PublicKey)
		if err != nil {
			return err
		}
		pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
		if err != nil {
			return err
		}
		sigBytes, err := base64.StdEncoding.DecodeString(ws.Signature)
		if err != nil {
			return err
		}
		sig, err := ecdsa.ParseDERSignature(sigBytes)
		if err != nil {
			return err
		}
		if !sig.Verify(message, pubKey) {
			return fmt.Errorf("fastgraph: wrapper signature %d does not verify", i)
		}
	}
	return nil
}

// Sign appends a wrapper signature by priv over f.Base.ID.
func (f *FastGraph) Sign(priv *secp256k1.PrivateKey) {
	sig := ecdsa.Sign(priv, []byte(f.Base.ID))
	f.Signatures = append(f.Signatures, WrapperSignature{
		PublicKey: hex.EncodeToString(priv.PubKey().SerializeCompressed()),
		Signature: base64.StdEncoding.EncodeToString(sig.Serialize()),
	})
}
