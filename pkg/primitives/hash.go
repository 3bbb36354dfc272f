// Package primitives implements the cipher primitives shared by the wallet
// store, asset tree, backup codec and transport handshake: hashing, HMAC,
// unpadded AES-256-CBC, secp256k1 signing/ECDH, a memory-hard KDF, a
// zero-on-drop secure buffer and a Fortuna-style PRNG for non-critical
// randomness.
//
// Grounded on the teacher's core/security.go (chacha20poly1305 AEAD,
// double-SHA256 Merkle helper) and core/wallet.go (hmacSHA512 derivation
// helper), extended with secp256k1 (core/compliance.go's
// secp256k1.ParsePubKey) for the primitives the Bitcoin-style derivation and
// ECDH envelope require.
package primitives

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for hash160 parity with Bitcoin addressing
)

// Hash256 computes SHA256(SHA256(x)), Bitcoin's double-SHA256.
func Hash256(x []byte) [32]byte {
	first := sha256.Sum256(x)
	return sha256.Sum256(first[:])
}

// Hash160 computes RIPEMD160(SHA256(x)).
func Hash160(x []byte) [20]byte {
	first := sha256.Sum256(x)
	r := ripemd160.New()
	r.Write(first[:])
	var out [20]byte
	copy(out[:], r.Sum(nil))
	return out
}

// HMAC256 computes HMAC-SHA256(key, msg) per RFC 2104.
func HMAC256(key, msg []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(msg)
	return h.Sum(nil)
}

// HMAC512 computes HMAC-SHA512(key, msg) per RFC 2104.
func HMAC512(key, msg []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(msg)
	return h.Sum(nil)
}
