// x25519.go implements the classical half of the hybrid KEM.
//
// X25519 (RFC 7748) is not quantum resistant. In Hybrid mode it keeps the
// shared secret safe if the post-quantum component turns out to be broken;
// in Legacy mode it is the only component.
package crypto

import (
	"crypto/ecdh"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
)

// X25519KeyPair represents an X25519 key pair for classical ECDH.
type X25519KeyPair struct {
	// PublicKey is the public component for sharing
	PublicKey *ecdh.PublicKey

	// PrivateKey is the secret component
	PrivateKey *ecdh.PrivateKey
}

// GenerateX25519KeyPair generates a new X25519 key pair from Reader.
func GenerateX25519KeyPair() (*X25519KeyPair, error) {
	curve := ecdh.X25519()

	privateKey, err := curve.GenerateKey(Reader)
	if err != nil {
		return nil, qerrors.NewCryptoError("X25519KeyPair.Generate", err)
	}

	return &X25519KeyPair{
		PublicKey:  privateKey.PublicKey(),
		PrivateKey: privateKey,
	}, nil
}

// NewX25519KeyPairFromBytes creates an X25519 key pair from a 32-byte private key.
// This is deterministic: the same private key bytes always produce the same key pair.
func NewX25519KeyPairFromBytes(privateKeyBytes []byte) (*X25519KeyPair, error) {
	if len(privateKeyBytes) != constants.X25519PrivateKeySize {
		return nil, qerrors.ErrInvalidKeySize
	}

	curve := ecdh.X25519()
	privateKey, err := curve.NewPrivateKey(privateKeyBytes)
	if err != nil {
		return nil, qerrors.NewCryptoError("X25519KeyPair.FromBytes", err)
	}

	return &X25519KeyPair{
		PublicKey:  privateKey.PublicKey(),
		PrivateKey: privateKey,
	}, nil
}

// X25519 performs the Diffie-Hellman computation. Low-order peer points
// (all-zero output) are rejected by crypto/ecdh.
//
// The result is raw key material and must go through a KDF before use.
func X25519(privateKey *ecdh.PrivateKey, peerPublic *ecdh.PublicKey) ([]byte, error) {
	if privateKey == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if peerPublic == nil {
		return nil, qerrors.ErrInvalidPublicKey
	}

	sharedSecret, err := privateKey.ECDH(peerPublic)
	if err != nil {
		return nil, qerrors.NewCryptoError("X25519", err)
	}

	return sharedSecret, nil
}

// PublicKeyBytes returns the encoded bytes of the public key.
func (kp *X25519KeyPair) PublicKeyBytes() []byte {
	return kp.PublicKey.Bytes()
}

// PrivateKeyBytes returns the encoded bytes of the private key.
// Warning: Handle with care - this exposes the secret key material.
func (kp *X25519KeyPair) PrivateKeyBytes() []byte {
	return kp.PrivateKey.Bytes()
}

// ParseX25519PublicKey parses an X25519 public key from its encoded form.
func ParseX25519PublicKey(data []byte) (*ecdh.PublicKey, error) {
	if len(data) != constants.X25519PublicKeySize {
		return nil, qerrors.ErrInvalidPublicKey
	}

	curve := ecdh.X25519()
	publicKey, err := curve.NewPublicKey(data)
	if err != nil {
		return nil, qerrors.NewCryptoError("ParseX25519PublicKey", err)
	}

	return publicKey, nil
}

// X25519Encapsulate runs ephemeral-static DH against peerPublic and returns
// the ephemeral public key together with the shared secret.
func X25519Encapsulate(peerPublic []byte) (ephemeralPublic, sharedSecret []byte, err error) {
	peer, err := ParseX25519PublicKey(peerPublic)
	if err != nil {
		return nil, nil, err
	}

	eph, err := GenerateX25519KeyPair()
	if err != nil {
		return nil, nil, err
	}
	defer eph.Zeroize()

	sharedSecret, err = X25519(eph.PrivateKey, peer)
	if err != nil {
		return nil, nil, err
	}
	return eph.PublicKeyBytes(), sharedSecret, nil
}

// X25519Decapsulate recomputes the shared secret of X25519Encapsulate from
// the static private key bytes and the ephemeral public key.
func X25519Decapsulate(privateKey, ephemeralPublic []byte) ([]byte, error) {
	kp, err := NewX25519KeyPairFromBytes(privateKey)
	if err != nil {
		return nil, err
	}
	defer kp.Zeroize()

	eph, err := ParseX25519PublicKey(ephemeralPublic)
	if err != nil {
		return nil, err
	}
	return X25519(kp.PrivateKey, eph)
}

// Zeroize drops the references to the key material.
func (kp *X25519KeyPair) Zeroize() {
	// ecdh.PrivateKey does not expose its buffer; callers holding the
	// encoded bytes zeroize those themselves.
	kp.PrivateKey = nil
	kp.PublicKey = nil
}
