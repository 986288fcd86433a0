// sign.go adapts the signature schemes behind a byte-oriented interface, the
// signing counterpart of kem.go.
package crypto

import (
	"crypto/ed25519"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/cloudflare/circl/sign/slhdsa"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
)

// Signer is a signature scheme over encoded keys.
type Signer interface {
	Name() string

	PublicKeySize() int
	PrivateKeySize() int
	SignatureSize() int

	// GenerateKey draws fresh randomness from Reader.
	GenerateKey() (publicKey, privateKey []byte, err error)

	Sign(privateKey, message []byte) ([]byte, error)

	// Verify never returns an error; malformed inputs verify as false.
	Verify(publicKey, message, signature []byte) bool
}

// MLDSA87 returns ML-DSA-87 (FIPS 204, Category 5).
func MLDSA87() Signer {
	return circlSigner{scheme: mldsa87.Scheme()}
}

// SLHDSA256f returns SLH-DSA-SHAKE-256f (FIPS 205), the hash-based family.
// Signatures are about 49 KiB and signing is slow compared to ML-DSA.
func SLHDSA256f() Signer {
	return slhdsaSigner{id: slhdsa.SHAKE_256f}
}

// Ed25519 returns the classical signature component.
func Ed25519() Signer {
	return ed25519Signer{}
}

type circlSigner struct {
	scheme sign.Scheme
}

func (s circlSigner) Name() string        { return s.scheme.Name() }
func (s circlSigner) PublicKeySize() int  { return s.scheme.PublicKeySize() }
func (s circlSigner) PrivateKeySize() int { return s.scheme.PrivateKeySize() }
func (s circlSigner) SignatureSize() int  { return s.scheme.SignatureSize() }

func (s circlSigner) GenerateKey() ([]byte, []byte, error) {
	seed := make([]byte, s.scheme.SeedSize())
	defer Zeroize(seed)
	if err := SecureRandom(seed); err != nil {
		return nil, nil, qerrors.NewCryptoError(s.Name()+".GenerateKey", err)
	}
	return s.deriveKey(seed)
}

func (s circlSigner) deriveKey(seed []byte) ([]byte, []byte, error) {
	if len(seed) != s.scheme.SeedSize() {
		return nil, nil, qerrors.NewCryptoError(s.Name()+".DeriveKey", qerrors.ErrInvalidKeySize)
	}
	pk, sk := s.scheme.DeriveKey(seed)

	pkBytes, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(s.Name()+".DeriveKey", err)
	}
	skBytes, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(s.Name()+".DeriveKey", err)
	}
	return pkBytes, skBytes, nil
}

func (s circlSigner) Sign(privateKey, message []byte) ([]byte, error) {
	if len(privateKey) != s.PrivateKeySize() {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	sk, err := s.scheme.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, qerrors.NewCryptoError(s.Name()+".Sign", qerrors.ErrInvalidPrivateKey)
	}
	return s.scheme.Sign(sk, message, nil), nil
}

func (s circlSigner) Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != s.PublicKeySize() || len(signature) != s.SignatureSize() {
		return false
	}
	pk, err := s.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return false
	}
	return s.scheme.Verify(pk, message, signature, nil)
}

type slhdsaSigner struct {
	id slhdsa.ID
}

func (s slhdsaSigner) Name() string        { return "SLH-DSA-SHAKE-256f" }
func (s slhdsaSigner) PublicKeySize() int  { return constants.SLHDSAPublicKeySize }
func (s slhdsaSigner) PrivateKeySize() int { return constants.SLHDSAPrivateKeySize }
func (s slhdsaSigner) SignatureSize() int  { return constants.SLHDSASignatureSize }

func (s slhdsaSigner) GenerateKey() ([]byte, []byte, error) {
	pub, priv, err := slhdsa.GenerateKey(Reader, s.id)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(s.Name()+".GenerateKey", err)
	}
	pkBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(s.Name()+".GenerateKey", err)
	}
	skBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(s.Name()+".GenerateKey", err)
	}
	return pkBytes, skBytes, nil
}

func (s slhdsaSigner) Sign(privateKey, message []byte) ([]byte, error) {
	if len(privateKey) != s.PrivateKeySize() {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	priv := slhdsa.PrivateKey{ID: s.id}
	if err := priv.UnmarshalBinary(privateKey); err != nil {
		return nil, qerrors.NewCryptoError(s.Name()+".Sign", qerrors.ErrInvalidPrivateKey)
	}
	sig, err := slhdsa.SignDeterministic(&priv, slhdsa.NewMessage(message), nil)
	if err != nil {
		return nil, qerrors.NewCryptoError(s.Name()+".Sign", qerrors.ErrSigningFailed)
	}
	return sig, nil
}

func (s slhdsaSigner) Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != s.PublicKeySize() || len(signature) != s.SignatureSize() {
		return false
	}
	pub := slhdsa.PublicKey{ID: s.id}
	if err := pub.UnmarshalBinary(publicKey); err != nil {
		return false
	}
	return slhdsa.Verify(&pub, slhdsa.NewMessage(message), signature, nil)
}

type ed25519Signer struct{}

func (ed25519Signer) Name() string        { return "Ed25519" }
func (ed25519Signer) PublicKeySize() int  { return constants.Ed25519PublicKeySize }
func (ed25519Signer) PrivateKeySize() int { return constants.Ed25519PrivateKeySize }
func (ed25519Signer) SignatureSize() int  { return constants.Ed25519SignatureSize }

func (ed25519Signer) GenerateKey() ([]byte, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(Reader)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("Ed25519.GenerateKey", err)
	}
	return pub, priv, nil
}

func (ed25519Signer) Sign(privateKey, message []byte) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	return ed25519.Sign(ed25519.PrivateKey(privateKey), message), nil
}

func (ed25519Signer) Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}
