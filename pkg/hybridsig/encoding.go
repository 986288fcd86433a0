package hybridsig

import (
	"fmt"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/registry"
	"github.com/pzverkov/quantum-agility/pkg/wire"
)

const (
	fieldClassical wire.Number = 1
	fieldPQFamily  wire.Number = 2
	fieldPQ        wire.Number = 3
	fieldPublic    wire.Number = 4
)

// MarshalBinary encodes the public key.
func (pk *PublicKey) MarshalBinary() ([]byte, error) {
	return encodeParts(wire.TypeSigPublicKey, pk.Classical, pk.PQ).Finish()
}

// MarshalBinary encodes the secret key, including its public key.
func (sk *SecretKey) MarshalBinary() ([]byte, error) {
	e := encodeParts(wire.TypeSigSecretKey, sk.Classical, sk.PQ)
	if sk.Public != nil {
		pub, err := sk.Public.MarshalBinary()
		if err != nil {
			return nil, err
		}
		e.Bytes(fieldPublic, pub)
	}
	return e.Finish()
}

// MarshalBinary encodes the signature.
func (sig *Signature) MarshalBinary() ([]byte, error) {
	return encodeParts(wire.TypeSignature, sig.Classical, sig.PQ).Finish()
}

// ParsePublicKey decodes a public key.
func ParsePublicKey(data []byte) (*PublicKey, error) {
	classical, pq, _, err := decodeParts(wire.TypeSigPublicKey, data)
	if err != nil {
		return nil, err
	}
	pk := &PublicKey{Classical: classical, PQ: pq}
	if _, err := pk.Mode(); err != nil {
		return nil, fmt.Errorf("%w: %v", qerrors.ErrInvalidEncoding, err)
	}
	return pk, nil
}

// ParseSecretKey decodes a secret key.
func ParseSecretKey(data []byte) (*SecretKey, error) {
	classical, pq, f, err := decodeParts(wire.TypeSigSecretKey, data)
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
	return sk, nil
}

// ParseSignature decodes a signature. Its components are checked against
// a mode only at verification time.
func ParseSignature(data []byte) (*Signature, error) {
	classical, pq, _, err := decodeParts(wire.TypeSignature, data)
	if err != nil {
		return nil, err
	}
	return &Signature{Classical: classical, PQ: pq}, nil
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
		fam := registry.SignatureFamily(f.Uint(fieldPQFamily))
		if _, err := registry.Signature(fam); err != nil {
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
