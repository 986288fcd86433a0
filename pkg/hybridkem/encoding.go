package hybridkem

import (
	"fmt"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/registry"
	"github.com/pzverkov/quantum-agility/pkg/wire"
)

// Field numbers shared by the key and ciphertext records.
const (
	fieldClassical wire.Number = 1
	fieldPQFamily  wire.Number = 2
	fieldPQ        wire.Number = 3
	fieldPublic    wire.Number = 4
)

// MarshalBinary encodes the public key as a versioned wire record.
func (pk *PublicKey) MarshalBinary() ([]byte, error) {
	return encodeParts(wire.TypeKEMPublicKey, pk.Classical, pk.PQ).Finish()
}

// MarshalBinary encodes the secret key, including its public key.
func (sk *SecretKey) MarshalBinary() ([]byte, error) {
	e := encodeParts(wire.TypeKEMSecretKey, sk.Classical, sk.PQ)
	if sk.Public != nil {
		pub, err := sk.Public.MarshalBinary()
		if err != nil {
			return nil, err
		}
		e.Bytes(fieldPublic, pub)
	}
	return e.Finish()
}

// MarshalBinary encodes the ciphertext.
func (ct *Ciphertext) MarshalBinary() ([]byte, error) {
	return encodeParts(wire.TypeKEMCiphertext, ct.Classical, ct.PQ).Finish()
}

// ParsePublicKey decodes a public key and checks it against its own mode.
func ParsePublicKey(data []byte) (*PublicKey, error) {
	classical, pq, _, err := decodeParts(wire.TypeKEMPublicKey, data)
	if err != nil {
		return nil, err
	}
	pk := &PublicKey{Classical: classical, PQ: pq}
	mode, err := pk.Mode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", qerrors.ErrInvalidEncoding, err)
	}
	if err := pk.checkEncoded(mode); err != nil {
		return nil, err
	}
	return pk, nil
}

// ParseSecretKey decodes a secret key.
func ParseSecretKey(data []byte) (*SecretKey, error) {
	classical, pq, f, err := decodeParts(wire.TypeKEMSecretKey, data)
	if err != nil {
		return nil, err
	}
	sk := &SecretKey{Classical: classical, PQ: pq}
	mode, err := sk.Mode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", qerrors.ErrInvalidEncoding, err)
	}
	if f.Has(fieldPublic) {
		raw, err := f.Bytes(fieldPublic)
		if err != nil {
			return nil, err
		}
		if sk.Public, err = ParsePublicKey(raw); err != nil {
			return nil, err
		}
		if pm, _ := sk.Public.Mode(); pm != mode {
			return nil, fmt.Errorf("%w: secret and public key modes differ", qerrors.ErrInvalidEncoding)
		}
	}
	if err := checkComponents(mode, sk.Classical, sk.PQ); err != nil {
		return nil, err
	}
	return sk, nil
}

// ParseCiphertext decodes a ciphertext. Its mode is not inferred; callers
// check it against the mode persisted next to it.
func ParseCiphertext(data []byte) (*Ciphertext, error) {
	classical, pq, _, err := decodeParts(wire.TypeKEMCiphertext, data)
	if err != nil {
		return nil, err
	}
	return &Ciphertext{Classical: classical, PQ: pq}, nil
}

// checkEncoded is Check without the length validation of families that
// are registered but not compiled in, so that such keys can still be read.
func (pk *PublicKey) checkEncoded(mode Mode) error {
	if err := checkComponents(mode, pk.Classical, pk.PQ); err != nil {
		return err
	}
	if mode.HasPostQuantum() {
		if d, _ := registry.KEM(mode.Family); d.PublicKeySize != 0 && len(pk.PQ.Bytes) != d.PublicKeySize {
			return qerrors.ErrInvalidPublicKey
		}
	}
	return nil
}

func encodeParts(t wire.RecordType, classical []byte, pq *Component) *wire.Encoder {
	e := wire.NewEncoder(t).Bytes(fieldClassical, classical)
	if pq != nil {
		e.Uint(fieldPQFamily, uint64(pq.Family)).Bytes(fieldPQ, pq.Bytes)
	}
	return e
}

func decodeParts(t wire.RecordType, data []byte) ([]byte, *Component, *wire.Fields, error) {
	f, err := wire.Decode(t, data)
	if err != nil {
		return nil, nil, nil, err
	}
	classical, err := f.Bytes(fieldClassical)
	if err != nil {
		return nil, nil, nil, err
	}

	var pq *Component
	if f.Has(fieldPQ) {
		fam := registry.KEMFamily(f.Uint(fieldPQFamily))
		if _, err := registry.KEM(fam); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %s: %v", qerrors.ErrInvalidEncoding, t, err)
		}
		b, err := f.Bytes(fieldPQ)
		if err != nil {
			return nil, nil, nil, err
		}
		pq = &Component{Family: fam, Bytes: b}
	}
	return classical, pq, f, nil
}
