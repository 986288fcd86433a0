// Package errors defines the error taxonomy of the crypto-agility layer.
//
// Errors fall into four kinds that callers are expected to handle
// differently:
//
//   - configuration errors (unknown or unsupported family, mode/key mismatch),
//     fatal at setup time
//   - cryptographic failures (bad tag, invalid signature, failed
//     decapsulation), reported opaquely so they cannot be used as an oracle
//   - policy denials from the ledger's gate, which are expected outcomes
//   - storage failures, after which the ledger state is left unchanged
//
// Error messages never include key material or plaintext.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration and algorithm selection
var (
	// ErrUnknownFamily indicates an algorithm family tag that is not in the registry
	ErrUnknownFamily = errors.New("registry: unknown algorithm family")

	// ErrUnsupportedFamily indicates a registered family that is not available in this build
	ErrUnsupportedFamily = errors.New("registry: algorithm family not supported in this build")

	// ErrInvalidMode indicates a malformed migration or signature mode
	ErrInvalidMode = errors.New("mode: invalid mode")

	// ErrModeMismatch indicates key or ciphertext components that do not match the requested mode
	ErrModeMismatch = errors.New("mode: components do not match mode")

	// ErrMissingLabel indicates a key derivation call without a context label
	ErrMissingLabel = errors.New("envelope: missing context label")
)

// Sentinel errors for key encapsulation
var (
	// ErrInvalidKeySize indicates that a key has an incorrect size
	ErrInvalidKeySize = errors.New("hybridkem: invalid key size")

	// ErrInvalidCiphertext indicates that ciphertext is malformed or invalid
	ErrInvalidCiphertext = errors.New("hybridkem: invalid ciphertext")

	// ErrDecapsulationFailed is the single opaque error for every decapsulation failure
	ErrDecapsulationFailed = errors.New("hybridkem: decapsulation failed")

	// ErrKeyGenerationFailed indicates that key generation failed
	ErrKeyGenerationFailed = errors.New("hybridkem: key generation failed")

	// ErrEncapsulationFailed indicates that KEM encapsulation failed
	ErrEncapsulationFailed = errors.New("hybridkem: encapsulation failed")

	// ErrInvalidPublicKey indicates that a public key is invalid
	ErrInvalidPublicKey = errors.New("hybridkem: invalid public key")

	// ErrInvalidPrivateKey indicates that a private key is invalid
	ErrInvalidPrivateKey = errors.New("hybridkem: invalid private key")
)

// Sentinel errors for signatures
var (
	// ErrSignatureInvalid is the single opaque error for every verification failure
	ErrSignatureInvalid = errors.New("hybridsig: signature invalid")

	// ErrSigningFailed indicates that a signing primitive failed
	ErrSigningFailed = errors.New("hybridsig: signing failed")
)

// Sentinel errors for AEAD operations
var (
	// ErrAuthenticationFailed indicates AEAD authentication/decryption failed
	ErrAuthenticationFailed = errors.New("aead: authentication failed")

	// ErrInvalidNonce indicates the nonce size is incorrect
	ErrInvalidNonce = errors.New("aead: invalid nonce size")

	// ErrCiphertextTooShort indicates ciphertext is too short to be valid
	ErrCiphertextTooShort = errors.New("aead: ciphertext too short")

	// ErrNonceExhausted indicates nonce space is exhausted for the current key
	ErrNonceExhausted = errors.New("aead: nonce space exhausted, rekey required")

	// ErrUnsupportedCipherSuite indicates an unsupported cipher suite
	ErrUnsupportedCipherSuite = errors.New("aead: unsupported cipher suite")

	// ErrStreamTruncated indicates a stream ended before its final chunk
	ErrStreamTruncated = errors.New("aead: stream truncated")
)

// Sentinel errors for encoding
var (
	// ErrInvalidEncoding indicates a malformed serialized record
	ErrInvalidEncoding = errors.New("wire: invalid encoding")

	// ErrUnsupportedVersion indicates a record written by an unknown format version
	ErrUnsupportedVersion = errors.New("wire: unsupported format version")

	// ErrMessageTooLarge indicates a record exceeds the maximum size
	ErrMessageTooLarge = errors.New("wire: record too large")
)

// Sentinel errors for the ledger
var (
	// ErrPolicyDenied indicates the policy gate refused a commit
	ErrPolicyDenied = errors.New("ledger: commit denied by policy")

	// ErrEntryNotFound indicates an index past the end of the ledger
	ErrEntryNotFound = errors.New("ledger: entry not found")

	// ErrWrongEraKey indicates a reader key that does not belong to the entry's era
	ErrWrongEraKey = errors.New("ledger: key does not match entry era")

	// ErrKeyRetired indicates the secret key for an era has been erased
	ErrKeyRetired = errors.New("ledger: era key retired")

	// ErrUnknownEpoch indicates an epoch with no key on record
	ErrUnknownEpoch = errors.New("ledger: unknown key epoch")

	// ErrChainBroken indicates the hash chain or a signature failed verification
	ErrChainBroken = errors.New("ledger: chain verification failed")

	// ErrLedgerClosed indicates use of a closed ledger
	ErrLedgerClosed = errors.New("ledger: closed")
)

// Sentinel errors for storage
var (
	// ErrStoreClosed indicates the store has been closed
	ErrStoreClosed = errors.New("store: closed")

	// ErrIndexConflict indicates an append at an index other than the next one
	ErrIndexConflict = errors.New("store: index conflict")

	// ErrBadPassphrase indicates the key file could not be unlocked
	ErrBadPassphrase = errors.New("store: key file authentication failed")
)

// CryptoError wraps a cryptographic error with additional context
type CryptoError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// ConfigError reports an invalid algorithm or mode selection.
type ConfigError struct {
	Field string // What was being configured (e.g. "kem_mode")
	Value string // The rejected value, never secret material
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Err: err}
}

// PolicyError reports a commit refused by the policy gate.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	if e.Reason == "" {
		return ErrPolicyDenied.Error()
	}
	return fmt.Sprintf("%v: %s", ErrPolicyDenied, e.Reason)
}

func (e *PolicyError) Unwrap() error {
	return ErrPolicyDenied
}

// NewPolicyError creates a new PolicyError
func NewPolicyError(reason string) *PolicyError {
	return &PolicyError{Reason: reason}
}

// StorageError wraps a persistence failure.
type StorageError struct {
	Backend string // "memory", "badger", "sqlite", "keyfile"
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError
func NewStorageError(backend, op string, err error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Err: err}
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsCrypto reports whether err is a cryptographic failure.
func IsCrypto(err error) bool {
	var ce *CryptoError
	if errors.As(err, &ce) {
		return true
	}
	return errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrDecapsulationFailed) ||
		errors.Is(err, ErrSignatureInvalid)
}

// IsPolicy reports whether err is a policy denial.
func IsPolicy(err error) bool {
	return errors.Is(err, ErrPolicyDenied)
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
