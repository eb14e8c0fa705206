package consensus

import (
	"encoding/base64"
	"encoding/hex"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/coraxum/coraxumd/address"
	"github.com/coraxum/coraxumd/block"
)

var errBlockSignature = errors.New("consensus: block signature does not verify")

// verifyBlockSignature checks b.Signature over b.Hash under b.PublicKey,
// per §4.9 step 4. It tries a plain secp256k1 DER signature first; blocks
// produced by software that instead emits a Bitcoin message-signed
// recoverable signature are accepted too, by recovering the signer's
// public key from the compact signature and checking it resolves to the
// same P2PKH address as b.PublicKey. Both paths exist because the chain's
// history contains blocks signed either way.
func verifyBlockSignature(b *block.Block) error {
	sigBytes, err := base64.StdEncoding.DecodeString(b.Signature)
	if err != nil {
		return errBlockSignature
	}
	hashBytes, err := hex.DecodeString(b.Hash)
	if err != nil {
		return errBlockSignature
	}
	pubKeyBytes, err := hex.DecodeString(b.PublicKey)
	if err != nil {
		return errBlockSignature
	}

	if verifyDER(sigBytes, hashBytes, pubKeyBytes) {
		return nil
	}
	if verifyCompact(sigBytes, hashBytes, b.PublicKey) {
		return nil
	}
	return errBlockSignature
}

func verifyDER(sigBytes, hashBytes, pubKeyBytes []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}
	return sig.Verify(hashBytes, pubKey)
}

// verifyCompact recovers the signer's public key from a 65-byte compact
// (Bitcoin message-signed) signature and checks it resolves to the same
// P2PKH address as wantPublicKeyHex, rather than demanding byte-identical
// keys: message signing recovers a key, it does not confirm serialization.
func verifyCompact(sigBytes, hashBytes []byte, wantPublicKeyHex string) bool {
	if len(sigBytes) != 65 {
		return false
	}
	recovered, _, err := ecdsa.RecoverCompact(sigBytes, hashBytes)
	if err != nil {
		return false
	}
	wantAddr, err := address.FromPublicKeyHex(wantPublicKeyHex)
	if err != nil {
		return false
	}
	return address.FromPublicKeyBytes(recovered.SerializeCompressed()) == wantAddr ||
		address.FromPublicKeyBytes(recovered.SerializeUncompressed()) == wantAddr
}
