// kem.go adapts the key encapsulation schemes behind a single byte-oriented
// interface so that the hybrid engine can dispatch on an algorithm tag.
//
// Keys and ciphertexts cross this boundary in their encoded form. Each call
// parses what it needs and drops the parsed value, so secret material lives
// in exactly one buffer that the owner can zeroize.
package crypto

import (
	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
)

// KEM is a key encapsulation mechanism over encoded keys.
type KEM interface {
	// Name is the parameter set name, e.g. "ML-KEM-1024".
	Name() string

	PublicKeySize() int
	PrivateKeySize() int
	CiphertextSize() int
	SharedSecretSize() int

	// GenerateKeyPair draws fresh randomness from Reader.
	GenerateKeyPair() (publicKey, privateKey []byte, err error)

	// Encapsulate produces a ciphertext and the shared secret it carries.
	Encapsulate(publicKey []byte) (ciphertext, sharedSecret []byte, err error)

	// Decapsulate recovers the shared secret from a ciphertext.
	Decapsulate(privateKey, ciphertext []byte) (sharedSecret []byte, err error)
}

// MLKEM1024 returns the ML-KEM-1024 scheme (FIPS 203, Category 5).
func MLKEM1024() KEM {
	return circlKEM{scheme: mlkem1024.Scheme()}
}

// X25519KEM returns X25519 used as an ephemeral-static KEM: the ciphertext
// is the ephemeral public key.
func X25519KEM() KEM {
	return x25519KEM{}
}

// circlKEM adapts a circl kem.Scheme. Randomness is drawn from Reader and fed
// through the scheme's deterministic entry points so that every byte of
// entropy in the module has one source.
type circlKEM struct {
	scheme kem.Scheme
}

func (k circlKEM) Name() string          { return k.scheme.Name() }
func (k circlKEM) PublicKeySize() int    { return k.scheme.PublicKeySize() }
func (k circlKEM) PrivateKeySize() int   { return k.scheme.PrivateKeySize() }
func (k circlKEM) CiphertextSize() int   { return k.scheme.CiphertextSize() }
func (k circlKEM) SharedSecretSize() int { return k.scheme.SharedKeySize() }

func (k circlKEM) GenerateKeyPair() ([]byte, []byte, error) {
	seed := make([]byte, k.scheme.SeedSize())
	defer Zeroize(seed)
	if err := SecureRandom(seed); err != nil {
		return nil, nil, qerrors.NewCryptoError(k.Name()+".GenerateKeyPair", err)
	}
	return k.deriveKeyPair(seed)
}

// deriveKeyPair is the deterministic key generation used by the self-tests.
func (k circlKEM) deriveKeyPair(seed []byte) ([]byte, []byte, error) {
	if len(seed) != k.scheme.SeedSize() {
		return nil, nil, qerrors.NewCryptoError(k.Name()+".DeriveKeyPair", qerrors.ErrInvalidKeySize)
	}
	pk, sk := k.scheme.DeriveKeyPair(seed)

	pkBytes, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(k.Name()+".DeriveKeyPair", err)
	}
	skBytes, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(k.Name()+".DeriveKeyPair", err)
	}
	return pkBytes, skBytes, nil
}

func (k circlKEM) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	if len(publicKey) != k.PublicKeySize() {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}
	pk, err := k.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(k.Name()+".Encapsulate", qerrors.ErrInvalidPublicKey)
	}

	seed := make([]byte, k.scheme.EncapsulationSeedSize())
	defer Zeroize(seed)
	if err := SecureRandom(seed); err != nil {
		return nil, nil, qerrors.NewCryptoError(k.Name()+".Encapsulate", err)
	}

	ct, ss, err := k.scheme.EncapsulateDeterministically(pk, seed)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(k.Name()+".Encapsulate", qerrors.ErrEncapsulationFailed)
	}
	return ct, ss, nil
}

func (k circlKEM) Decapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	if len(privateKey) != k.PrivateKeySize() {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if len(ciphertext) != k.CiphertextSize() {
		return nil, qerrors.ErrInvalidCiphertext
	}
	sk, err := k.scheme.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, qerrors.NewCryptoError(k.Name()+".Decapsulate", qerrors.ErrInvalidPrivateKey)
	}
	ss, err := k.scheme.Decapsulate(sk, ciphertext)
	if err != nil {
		return nil, qerrors.NewCryptoError(k.Name()+".Decapsulate", qerrors.ErrDecapsulationFailed)
	}
	return ss, nil
}

type x25519KEM struct{}

func (x25519KEM) Name() string          { return "X25519" }
func (x25519KEM) PublicKeySize() int    { return constants.X25519PublicKeySize }
func (x25519KEM) PrivateKeySize() int   { return constants.X25519PrivateKeySize }
func (x25519KEM) CiphertextSize() int   { return constants.X25519PublicKeySize }
func (x25519KEM) SharedSecretSize() int { return constants.X25519SharedSecretSize }

func (x25519KEM) GenerateKeyPair() ([]byte, []byte, error) {
	kp, err := GenerateX25519KeyPair()
	if err != nil {
		return nil, nil, err
	}
	defer kp.Zeroize()
	return kp.PublicKeyBytes(), kp.PrivateKeyBytes(), nil
}

func (x25519KEM) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	return X25519Encapsulate(publicKey)
}

func (x25519KEM) Decapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	return X25519Decapsulate(privateKey, ciphertext)
}
