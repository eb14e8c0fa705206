// Package address derives and validates P2PKH addresses from secp256k1
// public keys, following python-bitcoinlib's P2PKHBitcoinAddress scheme
// (RIPEMD160(SHA256(pubkey)) with a version byte and a base58check
// checksum) exactly as the GLOSSARY in the specification defines it.
package address

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"

	"github.com/decred/base58"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for P2PKH hash160
)

// VersionMainnet is the base58check version byte for mainnet P2PKH
// addresses (Bitcoin's 0x00, inherited unchanged by the lineage this node
// descends from).
const VersionMainnet byte = 0x00

const checksumLen = 4

// ErrInvalidPublicKey is returned when the supplied public key is not valid
// hex or not a sane secp256k1 serialization length.
var ErrInvalidPublicKey = errors.New("address: invalid public key")

// ErrInvalidAddress is returned by Decode when the string fails base58check
// decoding. Decode does not check the version byte; it returns it to the
// caller.
var ErrInvalidAddress = errors.New("address: invalid address")

// Hash160 computes RIPEMD160(SHA256(b)), the address payload hash used
// throughout the Bitcoin lineage.
func Hash160(b []byte) []byte {
	return calcHash(calcHash(b, sha256.New()), ripemd160.New())
}

func calcHash(buf []byte, hasher hash.Hash) []byte {
	hasher.Write(buf)
	return hasher.Sum(nil)
}

// FromPublicKeyHex derives the P2PKH address string for a hex-encoded
// secp256k1 public key, in either compressed or uncompressed serialization.
func FromPublicKeyHex(pubKeyHex string) (string, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil || (len(pubKey) != 33 && len(pubKey) != 65) {
		return "", ErrInvalidPublicKey
	}
	return FromPublicKeyBytes(pubKey), nil
}

// FromPublicKeyBytes derives the P2PKH address for a raw public key.
func FromPublicKeyBytes(pubKey []byte) string {
	payload := Hash160(pubKey)
	return encodeCheck(VersionMainnet, payload)
}

func encodeCheck(version byte, payload []byte) string {
	body := make([]byte, 0, 1+len(payload)+checksumLen)
	body = append(body, version)
	body = append(body, payload...)
	cksum := doubleSHA256(body)[:checksumLen]
	body = append(body, cksum...)
	return base58.Encode(body)
}

// Decode reverses encodeCheck, returning the version byte and payload hash.
func Decode(addr string) (version byte, payload []byte, err error) {
	decoded := base58.Decode(addr)
	if len(decoded) < 1+checksumLen {
		return 0, nil, ErrInvalidAddress
	}
	body := decoded[:len(decoded)-checksumLen]
	cksum := decoded[len(decoded)-checksumLen:]
	want := doubleSHA256(body)[:checksumLen]
	if !bytesEqual(cksum, want) {
		return 0, nil, ErrInvalidAddress
	}
	return body[0], body[1:], nil
}

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
