// Package crypto provides the primitives behind the hybrid engines: classical
// X25519/Ed25519, adapters over the post-quantum KEM and signature schemes,
// HKDF and hashing, AEAD ciphers, and the FIPS-style self-tests.
//
// All randomness flows through Reader (crypto/rand). A failing entropy source
// is reported as an error and never replaced by a weaker one.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"io"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
)

// SecureRandom fills b from Reader.
//
// An error here means the system's random number generator failed, which
// callers must treat as fatal for the operation in progress.
func SecureRandom(b []byte) error {
	_, err := io.ReadFull(Reader, b)
	if err != nil {
		return qerrors.NewCryptoError("SecureRandom", err)
	}
	return nil
}

// SecureRandomBytes returns n cryptographically secure random bytes.
// Returns an error if the system's CSPRNG fails.
func SecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := SecureRandom(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Reader is the entropy source for every key, nonce and seed in the module.
// Tests may swap it to simulate a failing source.
var Reader io.Reader = rand.Reader

// ConstantTimeCompare compares two byte slices in constant time.
// Slices of different length compare unequal.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// IsZero reports whether b is empty or all zero bytes, in constant time.
func IsZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}

// Zeroize securely erases sensitive data from memory by overwriting with zeros.
// This should be called on sensitive keys and secrets when they are no longer needed.
//
// The Go runtime may already have copied the data; this erases the copy the
// caller owns.
func Zeroize(b []byte) {
	clear(b)
}

// ZeroizeMultiple securely erases multiple byte slices.
func ZeroizeMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zeroize(s)
	}
}
