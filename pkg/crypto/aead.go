// aead.go implements Authenticated Encryption with Associated Data (AEAD).
//
// Supported suites:
//   - XChaCha20-Poly1305: default, 192-bit nonce, safe with random nonces
//   - AES-256-GCM: FIPS-approved, 96-bit nonce
//   - ChaCha20-Poly1305: 96-bit nonce
//
// All suites use 256-bit keys and 128-bit tags.
//
// Nonce reuse under one key breaks confidentiality and authenticity. Two
// nonce disciplines are offered: SealRandom draws a fresh nonce from Reader
// on every call, and Seal uses a per-instance random prefix followed by a
// 64-bit counter guarded by a mutex.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
)

// counterSize is the width of the counter part of a counter nonce.
const counterSize = 8

// AEAD represents an authenticated encryption cipher.
type AEAD struct {
	cipher cipher.AEAD
	suite  constants.CipherSuite

	// Counter nonce state
	mu      sync.Mutex
	prefix  []byte
	counter uint64
	maxSeq  uint64
}

// NewAEAD creates a new AEAD cipher with the specified suite and key.
// In FIPS builds only FIPS-approved suites are accepted.
func NewAEAD(suite constants.CipherSuite, key []byte) (*AEAD, error) {
	if len(key) != constants.SymmetricKeySize {
		return nil, qerrors.ErrInvalidKeySize
	}
	if FIPSMode() && !suite.IsFIPSApproved() {
		return nil, qerrors.ErrUnsupportedCipherSuite
	}

	var aeadCipher cipher.AEAD
	var err error

	switch suite {
	case constants.CipherSuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}
		aeadCipher, err = cipher.NewGCM(block)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}

	case constants.CipherSuiteChaCha20Poly1305:
		aeadCipher, err = chacha20poly1305.New(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}

	case constants.CipherSuiteXChaCha20Poly1305:
		aeadCipher, err = chacha20poly1305.NewX(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}

	default:
		return nil, qerrors.ErrUnsupportedCipherSuite
	}

	prefix := make([]byte, aeadCipher.NonceSize()-counterSize)
	if err := SecureRandom(prefix); err != nil {
		return nil, err
	}

	return &AEAD{
		cipher: aeadCipher,
		suite:  suite,
		prefix: prefix,
		maxSeq: constants.MaxSealsPerKey,
	}, nil
}

// SealRandom encrypts plaintext under a fresh random nonce and returns the
// nonce and ciphertext||tag separately.
func (a *AEAD) SealRandom(plaintext, additionalData []byte) (nonce, sealed []byte, err error) {
	nonce = make([]byte, a.cipher.NonceSize())
	if err := SecureRandom(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, a.cipher.Seal(nil, nonce, plaintext, additionalData), nil
}

// Seal encrypts with the next counter nonce and returns
// nonce || encrypted_data || auth_tag.
func (a *AEAD) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce, err := a.nextNonce()
	if err != nil {
		return nil, err
	}

	ns := len(nonce)
	ciphertext := make([]byte, ns, ns+len(plaintext)+a.cipher.Overhead())
	copy(ciphertext, nonce)

	return a.cipher.Seal(ciphertext, nonce, plaintext, additionalData), nil
}

// SealWithNonce encrypts using an explicit nonce.
//
// WARNING: The caller is responsible for nonce uniqueness.
// The returned slice is encrypted_data || auth_tag.
func (a *AEAD) SealWithNonce(nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != a.cipher.NonceSize() {
		return nil, qerrors.ErrInvalidNonce
	}
	return a.cipher.Seal(nil, nonce, plaintext, additionalData), nil
}

// Open decrypts the output of Seal.
func (a *AEAD) Open(ciphertext, additionalData []byte) ([]byte, error) {
	ns := a.cipher.NonceSize()
	if len(ciphertext) < ns+a.cipher.Overhead() {
		return nil, qerrors.ErrCiphertextTooShort
	}
	return a.OpenWithNonce(ciphertext[:ns], ciphertext[ns:], additionalData)
}

// OpenWithNonce decrypts encrypted_data || auth_tag with an explicit nonce.
// Every failure, including a wrong key, is ErrAuthenticationFailed.
func (a *AEAD) OpenWithNonce(nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != a.cipher.NonceSize() {
		return nil, qerrors.ErrInvalidNonce
	}
	if len(ciphertext) < a.cipher.Overhead() {
		return nil, qerrors.ErrCiphertextTooShort
	}

	plaintext, err := a.cipher.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, qerrors.ErrAuthenticationFailed
	}
	return plaintext, nil
}

// nextNonce returns prefix || counter and increments the counter.
func (a *AEAD) nextNonce() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.counter >= a.maxSeq {
		return nil, qerrors.ErrNonceExhausted
	}

	nonce := make([]byte, 0, len(a.prefix)+counterSize)
	nonce = append(nonce, a.prefix...)
	nonce = binary.BigEndian.AppendUint64(nonce, a.counter)
	a.counter++

	return nonce, nil
}

// Counter returns the number of counter nonces issued so far.
func (a *AEAD) Counter() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counter
}

// NeedsRekey returns true once 90% of the counter space is used.
func (a *AEAD) NeedsRekey() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counter >= (a.maxSeq * 9 / 10)
}

// Suite returns the cipher suite identifier.
func (a *AEAD) Suite() constants.CipherSuite {
	return a.suite
}

// Overhead returns the bytes Seal adds: nonce plus tag.
func (a *AEAD) Overhead() int {
	return a.cipher.NonceSize() + a.cipher.Overhead()
}

// NonceSize returns the required nonce size in bytes.
func (a *AEAD) NonceSize() int {
	return a.cipher.NonceSize()
}
