// Package envelope turns a KEM shared secret into a symmetric key and
// encrypts payloads with it.
//
// DeriveKey is HKDF-SHA3-256 under a mandatory, versioned label; the ledger
// also passes the KEM transcript as context so the key is bound to both
// ciphertexts. Encrypt uses the build's default suite (XChaCha20-Poly1305,
// or AES-256-GCM in FIPS builds) with a fresh random nonce per call.
// Decrypt fails closed: on any authentication failure no plaintext is
// returned.
package envelope

import (
	"fmt"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/wire"
)

// KeySize is the size of every derived symmetric key.
const KeySize = constants.SymmetricKeySize

// Payload is an encrypted payload: ciphertext without tag, nonce and tag.
type Payload struct {
	Suite      constants.CipherSuite
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// DeriveKey expands sharedSecret into a KeySize key bound to label and any
// context components. An empty label is rejected with ErrMissingLabel.
func DeriveKey(sharedSecret []byte, label string, context ...[]byte) ([]byte, error) {
	return crypto.HKDF(sharedSecret, nil, label, KeySize, context...)
}

// Encrypt seals plaintext under key with the default suite.
func Encrypt(key, plaintext, aad []byte) (*Payload, error) {
	return EncryptWithSuite(crypto.DefaultCipherSuite(), key, plaintext, aad)
}

// EncryptWithSuite seals plaintext with an explicit suite and a random nonce.
func EncryptWithSuite(suite constants.CipherSuite, key, plaintext, aad []byte) (*Payload, error) {
	if len(plaintext) > constants.MaxPayloadSize {
		return nil, qerrors.ErrMessageTooLarge
	}
	a, err := crypto.NewAEAD(suite, key)
	if err != nil {
		return nil, err
	}
	nonce, sealed, err := a.SealRandom(plaintext, aad)
	if err != nil {
		return nil, err
	}
	return split(suite, nonce, sealed), nil
}

// Decrypt opens p under key. Every failure is ErrAuthenticationFailed.
func Decrypt(key []byte, p *Payload, aad []byte) ([]byte, error) {
	if p == nil || p.IsCleartext() {
		return nil, authFailed()
	}
	a, err := crypto.NewAEAD(p.Suite, key)
	if err != nil {
		return nil, authFailed()
	}
	if len(p.Tag) != constants.TagSize {
		return nil, authFailed()
	}
	sealed := make([]byte, 0, len(p.Ciphertext)+len(p.Tag))
	sealed = append(sealed, p.Ciphertext...)
	sealed = append(sealed, p.Tag...)

	plaintext, err := a.OpenWithNonce(p.Nonce, sealed, aad)
	if err != nil {
		return nil, authFailed()
	}
	return plaintext, nil
}

// Cleartext wraps plaintext in a payload with a zero suite, nonce and tag,
// for entries stored deliberately unencrypted.
func Cleartext(plaintext []byte) *Payload {
	return &Payload{
		Ciphertext: append([]byte{}, plaintext...),
		Nonce:      make([]byte, crypto.DefaultCipherSuite().NonceSize()),
		Tag:        make([]byte, constants.TagSize),
	}
}

// IsCleartext reports whether p was built by Cleartext.
func (p *Payload) IsCleartext() bool {
	return p.Suite == 0 && crypto.IsZero(p.Nonce) && crypto.IsZero(p.Tag)
}

// Clone returns a deep copy of p.
func (p *Payload) Clone() *Payload {
	return &Payload{
		Suite:      p.Suite,
		Ciphertext: append([]byte{}, p.Ciphertext...),
		Nonce:      append([]byte{}, p.Nonce...),
		Tag:        append([]byte{}, p.Tag...),
	}
}

const (
	fieldSuite      wire.Number = 1
	fieldCiphertext wire.Number = 2
	fieldNonce      wire.Number = 3
	fieldTag        wire.Number = 4
)

// MarshalBinary encodes the payload as a wire record.
func (p *Payload) MarshalBinary() ([]byte, error) {
	return wire.NewEncoder(wire.TypePayload).
		Uint(fieldSuite, uint64(p.Suite)).
		Bytes(fieldCiphertext, nonNil(p.Ciphertext)).
		Bytes(fieldNonce, p.Nonce).
		Bytes(fieldTag, p.Tag).
		Finish()
}

// ParsePayload decodes a payload record.
func ParsePayload(data []byte) (*Payload, error) {
	f, err := wire.Decode(wire.TypePayload, data)
	if err != nil {
		return nil, err
	}
	p := &Payload{Suite: constants.CipherSuite(f.Uint(fieldSuite))}
	if p.Ciphertext, err = f.Bytes(fieldCiphertext); err != nil {
		return nil, err
	}
	if p.Nonce, err = f.Bytes(fieldNonce); err != nil {
		return nil, err
	}
	if p.Tag, err = f.Bytes(fieldTag); err != nil {
		return nil, err
	}
	if p.Ciphertext == nil {
		p.Ciphertext = []byte{}
	}
	if p.Suite != 0 && !p.Suite.IsSupported() {
		return nil, fmt.Errorf("%w: cipher suite 0x%04x", qerrors.ErrInvalidEncoding, uint16(p.Suite))
	}
	return p, nil
}

func split(suite constants.CipherSuite, nonce, sealed []byte) *Payload {
	n := len(sealed) - constants.TagSize
	return &Payload{
		Suite:      suite,
		Ciphertext: sealed[:n:n],
		Nonce:      nonce,
		Tag:        sealed[n:],
	}
}

func authFailed() error {
	return qerrors.NewCryptoError("envelope.Decrypt", qerrors.ErrAuthenticationFailed)
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
