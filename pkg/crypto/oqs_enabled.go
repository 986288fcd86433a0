//go:build oqs

// This file is compiled with the "oqs" build tag and binds the families that
// have no pure-Go implementation (HQC, Classic McEliece, Falcon) to liboqs
// through liboqs-go.
// It requires the liboqs shared library at build and run time.
package crypto

import (
	"bytes"

	"github.com/open-quantum-safe/liboqs-go/oqs"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
)

const (
	oqsHQCName      = "HQC-256"
	oqsMcElieceName = "Classic-McEliece-348864"
	oqsFalconName   = "Falcon-padded-1024"
)

// OQSEnabled reports whether the liboqs-backed families are compiled in.
func OQSEnabled() bool { return true }

// HQC256 returns HQC-256 backed by liboqs.
func HQC256() (KEM, error) {
	if !oqs.IsKEMEnabled(oqsHQCName) {
		return nil, qerrors.ErrUnsupportedFamily
	}
	return oqsKEM{
		name: oqsHQCName,
		pk:   constants.HQCPublicKeySize,
		sk:   constants.HQCPrivateKeySize,
		ct:   constants.HQCCiphertextSize,
		ss:   constants.HQCSharedSecretSize,
	}, nil
}

// McEliece348864 returns Classic McEliece 348864 backed by liboqs.
//
// Public keys are large (about 255 KiB) and key generation is slow; the
// scheme suits long-lived archival keys rather than per-session use.
func McEliece348864() (KEM, error) {
	if !oqs.IsKEMEnabled(oqsMcElieceName) {
		return nil, qerrors.ErrUnsupportedFamily
	}
	return oqsKEM{
		name: oqsMcElieceName,
		pk:   constants.McEliecePublicKeySize,
		sk:   constants.McEliecePrivateKeySize,
		ct:   constants.McElieceCiphertextSize,
		ss:   constants.McElieceSharedSecretSize,
	}, nil
}

// Falcon1024 returns Falcon-padded-1024 backed by liboqs.
func Falcon1024() (Signer, error) {
	if !oqs.IsSigEnabled(oqsFalconName) {
		return nil, qerrors.ErrUnsupportedFamily
	}
	return oqsSigner{name: oqsFalconName}, nil
}

// oqsKEM carries the sizes of its parameter set so that malformed input is
// rejected before it reaches the library.
type oqsKEM struct {
	name           string
	pk, sk, ct, ss int
}

func (k oqsKEM) Name() string          { return k.name }
func (k oqsKEM) PublicKeySize() int    { return k.pk }
func (k oqsKEM) PrivateKeySize() int   { return k.sk }
func (k oqsKEM) CiphertextSize() int   { return k.ct }
func (k oqsKEM) SharedSecretSize() int { return k.ss }

func (k oqsKEM) GenerateKeyPair() ([]byte, []byte, error) {
	kem := oqs.KeyEncapsulation{}
	defer kem.Clean()

	if err := kem.Init(k.name, nil); err != nil {
		return nil, nil, qerrors.NewCryptoError(k.name+".GenerateKeyPair", err)
	}
	pk, err := kem.GenerateKeyPair()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(k.name+".GenerateKeyPair", qerrors.ErrKeyGenerationFailed)
	}
	// Clean wipes the library's copy of the secret key.
	return pk, bytes.Clone(kem.ExportSecretKey()), nil
}

func (k oqsKEM) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	if len(publicKey) != k.PublicKeySize() {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}
	kem := oqs.KeyEncapsulation{}
	defer kem.Clean()

	if err := kem.Init(k.name, nil); err != nil {
		return nil, nil, qerrors.NewCryptoError(k.name+".Encapsulate", err)
	}
	ct, ss, err := kem.EncapSecret(publicKey)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(k.name+".Encapsulate", qerrors.ErrEncapsulationFailed)
	}
	return ct, ss, nil
}

func (k oqsKEM) Decapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	if len(privateKey) != k.PrivateKeySize() {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if len(ciphertext) != k.CiphertextSize() {
		return nil, qerrors.ErrInvalidCiphertext
	}
	kem := oqs.KeyEncapsulation{}
	defer kem.Clean()

	if err := kem.Init(k.name, bytes.Clone(privateKey)); err != nil {
		return nil, qerrors.NewCryptoError(k.name+".Decapsulate", qerrors.ErrInvalidPrivateKey)
	}
	ss, err := kem.DecapSecret(ciphertext)
	if err != nil {
		return nil, qerrors.NewCryptoError(k.name+".Decapsulate", qerrors.ErrDecapsulationFailed)
	}
	return ss, nil
}

type oqsSigner struct {
	name string
}

func (s oqsSigner) Name() string        { return s.name }
func (s oqsSigner) PublicKeySize() int  { return constants.FalconPublicKeySize }
func (s oqsSigner) PrivateKeySize() int { return constants.FalconPrivateKeySize }
func (s oqsSigner) SignatureSize() int  { return constants.FalconSignatureSize }

func (s oqsSigner) GenerateKey() ([]byte, []byte, error) {
	signer := oqs.Signature{}
	defer signer.Clean()

	if err := signer.Init(s.name, nil); err != nil {
		return nil, nil, qerrors.NewCryptoError(s.name+".GenerateKey", err)
	}
	pk, err := signer.GenerateKeyPair()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(s.name+".GenerateKey", qerrors.ErrKeyGenerationFailed)
	}
	return pk, bytes.Clone(signer.ExportSecretKey()), nil
}

func (s oqsSigner) Sign(privateKey, message []byte) ([]byte, error) {
	if len(privateKey) != s.PrivateKeySize() {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	signer := oqs.Signature{}
	defer signer.Clean()

	if err := signer.Init(s.name, bytes.Clone(privateKey)); err != nil {
		return nil, qerrors.NewCryptoError(s.name+".Sign", qerrors.ErrInvalidPrivateKey)
	}
	sig, err := signer.Sign(message)
	if err != nil {
		return nil, qerrors.NewCryptoError(s.name+".Sign", qerrors.ErrSigningFailed)
	}
	return sig, nil
}

func (s oqsSigner) Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != s.PublicKeySize() || len(signature) != s.SignatureSize() {
		return false
	}
	verifier := oqs.Signature{}
	defer verifier.Clean()

	if err := verifier.Init(s.name, nil); err != nil {
		return false
	}
	ok, err := verifier.Verify(message, signature, publicKey)
	return err == nil && ok
}
