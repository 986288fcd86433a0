// Package constants defines algorithm parameters, size limits and domain
// separation labels for the crypto-agility ledger.
//
// Sizes here are the published parameter-set sizes. The registry cross-checks
// them against the backing implementations at init time.
package constants

// Format identification
const (
	// FormatVersion is the current version of every persisted record
	FormatVersion uint8 = 1

	// FormatName is used for domain separation in key derivation and hashing
	FormatName = "PQ-LEDGER-v1"
)

// X25519 Parameters (RFC 7748)
const (
	X25519PublicKeySize    = 32
	X25519PrivateKeySize   = 32
	X25519SharedSecretSize = 32
)

// Ed25519 Parameters (RFC 8032)
const (
	Ed25519PublicKeySize  = 32
	Ed25519PrivateKeySize = 64
	Ed25519SignatureSize  = 64
)

// ML-KEM-1024 Parameters (NIST FIPS 203, Category 5)
const (
	MLKEMPublicKeySize    = 1568
	MLKEMPrivateKeySize   = 3168
	MLKEMCiphertextSize   = 1568
	MLKEMSharedSecretSize = 32
)

// HQC-256 Parameters (NIST round 4 selection, Category 5)
const (
	HQCPublicKeySize    = 7245
	HQCPrivateKeySize   = 7317
	HQCCiphertextSize   = 14421
	HQCSharedSecretSize = 64
)

// Classic McEliece 348864 Parameters (NIST round 4, Category 1)
const (
	McEliecePublicKeySize    = 261120
	McEliecePrivateKeySize   = 6492
	McElieceCiphertextSize   = 96
	McElieceSharedSecretSize = 32
)

// ML-DSA-87 Parameters (NIST FIPS 204, Category 5)
const (
	MLDSAPublicKeySize  = 2592
	MLDSAPrivateKeySize = 4896
	MLDSASignatureSize  = 4627
)

// SLH-DSA-SHAKE-256f Parameters (NIST FIPS 205, Category 5)
const (
	SLHDSAPublicKeySize  = 64
	SLHDSAPrivateKeySize = 128
	SLHDSASignatureSize  = 49856
)

// Falcon-padded-1024 Parameters (Category 5)
const (
	FalconPublicKeySize  = 1793
	FalconPrivateKeySize = 2305
	FalconSignatureSize  = 1280
)

// Symmetric Encryption Parameters
const (
	// SymmetricKeySize is the key size for every supported AEAD
	SymmetricKeySize = 32

	// AESNonceSize is the size of AES-GCM nonce in bytes (96 bits)
	AESNonceSize = 12

	// ChaCha20NonceSize is the size of ChaCha20-Poly1305 nonce in bytes
	ChaCha20NonceSize = 12

	// XChaCha20NonceSize is the size of XChaCha20-Poly1305 nonce in bytes (192 bits)
	XChaCha20NonceSize = 24

	// TagSize is the authentication tag size of every supported AEAD
	TagSize = 16

	// MaxSealsPerKey bounds the counter-nonce sealer before a rekey is required
	MaxSealsPerKey = 1 << 32
)

// Key Derivation and Hashing
const (
	// KDFOutputSize is the default output size for key derivation in bytes
	KDFOutputSize = 32

	// HashSize is the size of chain digests and transcript hashes (SHA3-256)
	HashSize = 32

	// LabelLedgerEnvelope derives per-entry payload keys
	LabelLedgerEnvelope = "pq-ledger/v1/envelope"

	// LabelSessionKey derives general-purpose session keys
	LabelSessionKey = "pq-ledger/v1/session"

	// LabelStream derives streaming encryption keys
	LabelStream = "pq-ledger/v1/stream"

	// LabelKeyFile derives the key-file wrapping key
	LabelKeyFile = "pq-ledger/v1/keyfile"

	// DomainSeparatorTranscript prefixes the KEM transcript hash
	DomainSeparatorTranscript = "pq-ledger/v1/kem-transcript"

	// DomainSeparatorEntryAAD prefixes the associated data of ledger entries
	DomainSeparatorEntryAAD = "pq-ledger/v1/entry-aad"
)

// Size Limits
const (
	// MaxPayloadSize is the largest plaintext accepted by a single commit
	MaxPayloadSize = 64 << 20

	// MaxRecordSize bounds any decoded record
	MaxRecordSize = MaxPayloadSize + 1<<20

	// StreamChunkSize is the default plaintext chunk size of the stream encryptor
	StreamChunkSize = 64 << 10
)

// CipherSuite identifiers
type CipherSuite uint16

const (
	// CipherSuiteAES256GCM uses AES-256-GCM with a random 96-bit nonce
	CipherSuiteAES256GCM CipherSuite = 0x0001

	// CipherSuiteChaCha20Poly1305 uses ChaCha20-Poly1305 with a 96-bit nonce
	CipherSuiteChaCha20Poly1305 CipherSuite = 0x0002

	// CipherSuiteXChaCha20Poly1305 uses XChaCha20-Poly1305 with a random 192-bit nonce
	CipherSuiteXChaCha20Poly1305 CipherSuite = 0x0003
)

// String returns a human-readable name for the cipher suite
func (cs CipherSuite) String() string {
	switch cs {
	case CipherSuiteAES256GCM:
		return "AES-256-GCM"
	case CipherSuiteChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	case CipherSuiteXChaCha20Poly1305:
		return "XChaCha20-Poly1305"
	default:
		return "Unknown"
	}
}

// IsSupported returns true if the cipher suite is supported
func (cs CipherSuite) IsSupported() bool {
	switch cs {
	case CipherSuiteAES256GCM, CipherSuiteChaCha20Poly1305, CipherSuiteXChaCha20Poly1305:
		return true
	}
	return false
}

// IsFIPSApproved returns true if the cipher suite is FIPS 140-3 approved.
// Only AES-256-GCM is approved; the ChaCha20 variants are not.
func (cs CipherSuite) IsFIPSApproved() bool {
	return cs == CipherSuiteAES256GCM
}

// NonceSize returns the nonce length of the suite, or 0 if unsupported.
func (cs CipherSuite) NonceSize() int {
	switch cs {
	case CipherSuiteAES256GCM:
		return AESNonceSize
	case CipherSuiteChaCha20Poly1305:
		return ChaCha20NonceSize
	case CipherSuiteXChaCha20Poly1305:
		return XChaCha20NonceSize
	}
	return 0
}

// ParseCipherSuite maps a suite name (as printed by String) back to its id.
func ParseCipherSuite(name string) (CipherSuite, bool) {
	for _, cs := range []CipherSuite{CipherSuiteAES256GCM, CipherSuiteChaCha20Poly1305, CipherSuiteXChaCha20Poly1305} {
		if cs.String() == name {
			return cs, true
		}
	}
	return 0, false
}
