package envelope

import (
	"github.com/pzverkov/quantum-agility/internal/constants"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
)

// Sealer encrypts a sequence of payloads under one key with counter nonces
// (random prefix || 64-bit counter). It is for callers that already track
// message order. It refuses to seal once the counter space is used up.
// A Sealer is safe for concurrent use.
type Sealer struct {
	aead *crypto.AEAD
}

// NewSealer creates a counter-nonce sealer with the default suite.
func NewSealer(key []byte) (*Sealer, error) {
	return NewSealerWithSuite(crypto.DefaultCipherSuite(), key)
}

// NewSealerWithSuite creates a counter-nonce sealer with an explicit suite.
func NewSealerWithSuite(suite constants.CipherSuite, key []byte) (*Sealer, error) {
	a, err := crypto.NewAEAD(suite, key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: a}, nil
}

// Seal encrypts plaintext with the next counter nonce.
func (s *Sealer) Seal(plaintext, aad []byte) (*Payload, error) {
	out, err := s.aead.Seal(plaintext, aad)
	if err != nil {
		return nil, err
	}
	ns := s.aead.NonceSize()
	return split(s.aead.Suite(), out[:ns:ns], out[ns:]), nil
}

// Open decrypts a payload sealed under the same key.
func (s *Sealer) Open(p *Payload, aad []byte) ([]byte, error) {
	if p == nil || p.Suite != s.aead.Suite() || len(p.Tag) != constants.TagSize {
		return nil, authFailed()
	}
	sealed := make([]byte, 0, len(p.Ciphertext)+len(p.Tag))
	sealed = append(append(sealed, p.Ciphertext...), p.Tag...)
	pt, err := s.aead.OpenWithNonce(p.Nonce, sealed, aad)
	if err != nil {
		return nil, authFailed()
	}
	return pt, nil
}

// Count returns how many payloads have been sealed.
func (s *Sealer) Count() uint64 { return s.aead.Counter() }

// NeedsRekey reports whether the counter is close to exhaustion.
func (s *Sealer) NeedsRekey() bool { return s.aead.NeedsRekey() }
