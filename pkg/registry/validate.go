package registry

import (
	"fmt"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
)

// ValidateKEMPublicKey checks the length of an encoded public key.
func ValidateKEMPublicKey(f KEMFamily, b []byte) error {
	d, err := KEM(f)
	if err != nil {
		return err
	}
	return checkLen(qerrors.ErrInvalidPublicKey, d.Name, len(b), d.PublicKeySize)
}

// ValidateKEMSecretKey checks the length of an encoded secret key.
func ValidateKEMSecretKey(f KEMFamily, b []byte) error {
	d, err := KEM(f)
	if err != nil {
		return err
	}
	return checkLen(qerrors.ErrInvalidPrivateKey, d.Name, len(b), d.SecretKeySize)
}

// ValidateKEMCiphertext checks the length of a ciphertext.
func ValidateKEMCiphertext(f KEMFamily, b []byte) error {
	d, err := KEM(f)
	if err != nil {
		return err
	}
	return checkLen(qerrors.ErrInvalidCiphertext, d.Name, len(b), d.CiphertextSize)
}

// ValidateSignaturePublicKey checks the length of an encoded public key.
func ValidateSignaturePublicKey(f SignatureFamily, b []byte) error {
	d, err := Signature(f)
	if err != nil {
		return err
	}
	return checkLen(qerrors.ErrInvalidPublicKey, d.Name, len(b), d.PublicKeySize)
}

// ValidateSignatureSecretKey checks the length of an encoded secret key.
func ValidateSignatureSecretKey(f SignatureFamily, b []byte) error {
	d, err := Signature(f)
	if err != nil {
		return err
	}
	return checkLen(qerrors.ErrInvalidPrivateKey, d.Name, len(b), d.SecretKeySize)
}

// ValidateSignature checks the length of a signature.
func ValidateSignature(f SignatureFamily, b []byte) error {
	d, err := Signature(f)
	if err != nil {
		return err
	}
	return checkLen(qerrors.ErrSignatureInvalid, d.Name, len(b), d.SignatureSize)
}

func checkLen(sentinel error, name string, got, want int) error {
	if want == 0 {
		return qerrors.NewConfigError("family", name, qerrors.ErrUnsupportedFamily)
	}
	if got != want {
		return fmt.Errorf("%w: %s: got %d bytes, want %d", sentinel, name, got, want)
	}
	return nil
}
