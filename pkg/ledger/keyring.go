package ledger

import (
	"fmt"
	"time"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/wire"
)

// KEMKey is one generation (epoch) of the ledger's encapsulation key.
// Entries record the epoch they were encapsulated under.
type KEMKey struct {
	Epoch     uint32
	Mode      hybridkem.Mode
	Public    *hybridkem.PublicKey
	Secret    *hybridkem.SecretKey // nil when retired or held elsewhere
	Retired   bool
	CreatedAt time.Time
}

// SignerKey is one generation of the ledger's signing key. Only the
// latest generation keeps its secret half.
type SignerKey struct {
	Epoch     uint32
	Mode      hybridsig.Mode
	Public    *hybridsig.PublicKey
	Secret    *hybridsig.SecretKey
	CreatedAt time.Time
}

// SignerDirectory resolves the verification key an entry was signed
// under. The ledger's own KeyRing implements it; a verifier without the
// ring can supply a public-only ring or any other lookup.
type SignerDirectory interface {
	SignerKey(epoch uint32, mode hybridsig.Mode) (*hybridsig.PublicKey, error)
}

// KeyRing holds every KEM and signer epoch of a ledger, ordered by epoch
// starting at 1. A KeyRing is replaced rather than modified when keys are
// added; the only in-place change is erasing secrets that were retired or
// superseded.
type KeyRing struct {
	kem []*KEMKey
	sig []*SignerKey
}

// NewKeyRing returns an empty key ring.
func NewKeyRing() *KeyRing {
	return &KeyRing{}
}

// KEM returns the KEM key of epoch.
func (r *KeyRing) KEM(epoch uint32) (*KEMKey, error) {
	if epoch == 0 || int(epoch) > len(r.kem) {
		return nil, fmt.Errorf("%w: kem epoch %d", qerrors.ErrUnknownEpoch, epoch)
	}
	return r.kem[epoch-1], nil
}

// Signer returns the signer key of epoch.
func (r *KeyRing) Signer(epoch uint32) (*SignerKey, error) {
	if epoch == 0 || int(epoch) > len(r.sig) {
		return nil, fmt.Errorf("%w: signer epoch %d", qerrors.ErrUnknownEpoch, epoch)
	}
	return r.sig[epoch-1], nil
}

// KEMKeys returns all KEM epochs in order.
func (r *KeyRing) KEMKeys() []*KEMKey {
	return append([]*KEMKey(nil), r.kem...)
}

// SignerKeys returns all signer epochs in order.
func (r *KeyRing) SignerKeys() []*SignerKey {
	return append([]*SignerKey(nil), r.sig...)
}

// SignerKey implements SignerDirectory. A mode other than the one the
// epoch was generated for is ErrWrongEraKey.
func (r *KeyRing) SignerKey(epoch uint32, mode hybridsig.Mode) (*hybridsig.PublicKey, error) {
	key, err := r.Signer(epoch)
	if err != nil {
		return nil, err
	}
	if key.Mode != mode {
		return nil, fmt.Errorf("%w: signer epoch %d is %s, entry claims %s", qerrors.ErrWrongEraKey, epoch, key.Mode, mode)
	}
	return key.Public, nil
}

// PublicOnly returns a copy of the ring without any secret key, suitable
// for handing to verifiers.
func (r *KeyRing) PublicOnly() *KeyRing {
	out := &KeyRing{
		kem: make([]*KEMKey, len(r.kem)),
		sig: make([]*SignerKey, len(r.sig)),
	}
	for i, k := range r.kem {
		c := *k
		c.Secret = nil
		out.kem[i] = &c
	}
	for i, k := range r.sig {
		c := *k
		c.Secret = nil
		out.sig[i] = &c
	}
	return out
}

// Zeroize erases every secret key held by the ring.
func (r *KeyRing) Zeroize() {
	for _, k := range r.kem {
		k.Secret.Zeroize()
	}
	for _, k := range r.sig {
		k.Secret.Zeroize()
	}
}

func (r *KeyRing) clone() *KeyRing {
	return &KeyRing{
		kem: append([]*KEMKey(nil), r.kem...),
		sig: append([]*SignerKey(nil), r.sig...),
	}
}

// withKEM returns a ring with a new KEM epoch appended.
func (r *KeyRing) withKEM(mode hybridkem.Mode, pk *hybridkem.PublicKey, sk *hybridkem.SecretKey, now time.Time) (*KeyRing, *KEMKey) {
	next := r.clone()
	key := &KEMKey{
		Epoch:     uint32(len(r.kem) + 1),
		Mode:      mode,
		Public:    pk,
		Secret:    sk,
		CreatedAt: now,
	}
	next.kem = append(next.kem, key)
	return next, key
}

// withSigner returns a ring with a new signer epoch appended. The previous
// latest epoch loses its secret in the new ring; the caller erases it once
// the new ring is in use.
func (r *KeyRing) withSigner(mode hybridsig.Mode, pk *hybridsig.PublicKey, sk *hybridsig.SecretKey, now time.Time) (*KeyRing, *SignerKey, *hybridsig.SecretKey) {
	next := r.clone()
	var superseded *hybridsig.SecretKey
	if n := len(next.sig); n > 0 && next.sig[n-1].Secret != nil {
		prev := *next.sig[n-1]
		superseded = prev.Secret
		prev.Secret = nil
		next.sig[n-1] = &prev
	}
	key := &SignerKey{
		Epoch:     uint32(len(r.sig) + 1),
		Mode:      mode,
		Public:    pk,
		Secret:    sk,
		CreatedAt: now,
	}
	next.sig = append(next.sig, key)
	return next, key, superseded
}

// withRetired returns a ring in which the KEM epoch is marked retired and
// holds no secret. It also returns the secret to erase.
func (r *KeyRing) withRetired(epoch uint32) (*KeyRing, *hybridkem.SecretKey) {
	next := r.clone()
	prev := *next.kem[epoch-1]
	secret := prev.Secret
	prev.Secret = nil
	prev.Retired = true
	next.kem[epoch-1] = &prev
	return next, secret
}

const (
	fieldRingKEM    wire.Number = 1
	fieldRingSigner wire.Number = 2

	fieldKeyEpoch   wire.Number = 1
	fieldKeyMode    wire.Number = 2
	fieldKeyPublic  wire.Number = 3
	fieldKeySecret  wire.Number = 4
	fieldKeyRetired wire.Number = 5
	fieldKeyCreated wire.Number = 6
)

// MarshalBinary encodes the ring, secrets included. Persist it only
// through an encrypted key file.
func (r *KeyRing) MarshalBinary() ([]byte, error) {
	kems := make([][]byte, 0, len(r.kem))
	for _, k := range r.kem {
		item, err := encodeKey(uint64(k.Epoch), k.Mode.Uint16(), k.Public, k.Secret, k.Retired, k.CreatedAt)
		if err != nil {
			return nil, err
		}
		kems = append(kems, item)
	}
	sigs := make([][]byte, 0, len(r.sig))
	for _, k := range r.sig {
		item, err := encodeKey(uint64(k.Epoch), k.Mode.Uint16(), k.Public, k.Secret, false, k.CreatedAt)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, item)
	}
	return wire.NewEncoder(wire.TypeKeyRing).
		Repeated(fieldRingKEM, kems).
		Repeated(fieldRingSigner, sigs).
		Finish()
}

type binaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

func encodeKey(epoch uint64, mode uint16, public, secret binaryMarshaler, retired bool, created time.Time) ([]byte, error) {
	pub, err := public.MarshalBinary()
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder(wire.TypeKeyRing).
		Uint(fieldKeyEpoch, epoch).
		Uint(fieldKeyMode, uint64(mode)).
		Bytes(fieldKeyPublic, pub).
		Bool(fieldKeyRetired, retired).
		Uint(fieldKeyCreated, uint64(created.UnixMilli()))
	if secret != nil && !isNilKey(secret) {
		sec, err := secret.MarshalBinary()
		if err != nil {
			return nil, err
		}
		e.Bytes(fieldKeySecret, sec)
	}
	return e.Finish()
}

func isNilKey(m binaryMarshaler) bool {
	switch k := m.(type) {
	case *hybridkem.SecretKey:
		return k == nil
	case *hybridsig.SecretKey:
		return k == nil
	}
	return false
}

// ParseKeyRing decodes a ring written by MarshalBinary.
func ParseKeyRing(data []byte) (*KeyRing, error) {
	f, err := wire.Decode(wire.TypeKeyRing, data)
	if err != nil {
		return nil, err
	}
	r := NewKeyRing()
	for i, item := range f.Repeated(fieldRingKEM) {
		key, err := parseKEMKey(item, uint32(i+1))
		if err != nil {
			return nil, err
		}
		r.kem = append(r.kem, key)
	}
	for i, item := range f.Repeated(fieldRingSigner) {
		key, err := parseSignerKey(item, uint32(i+1))
		if err != nil {
			return nil, err
		}
		r.sig = append(r.sig, key)
	}
	return r, nil
}

func decodeKeyItem(item []byte, epoch uint32) (*wire.Fields, error) {
	f, err := wire.Decode(wire.TypeKeyRing, item)
	if err != nil {
		return nil, err
	}
	if f.Uint(fieldKeyEpoch) != uint64(epoch) {
		return nil, fmt.Errorf("%w: key epoch %d out of order", qerrors.ErrInvalidEncoding, f.Uint(fieldKeyEpoch))
	}
	if f.Uint(fieldKeyMode) > 0xffff {
		return nil, fmt.Errorf("%w: key mode", qerrors.ErrInvalidEncoding)
	}
	return f, nil
}

func parseKEMKey(item []byte, epoch uint32) (*KEMKey, error) {
	f, err := decodeKeyItem(item, epoch)
	if err != nil {
		return nil, err
	}
	mode, err := hybridkem.ModeFromUint16(uint16(f.Uint(fieldKeyMode)))
	if err != nil {
		return nil, err
	}
	raw, err := f.Bytes(fieldKeyPublic)
	if err != nil {
		return nil, err
	}
	pk, err := hybridkem.ParsePublicKey(raw)
	if err != nil {
		return nil, err
	}
	if m, _ := pk.Mode(); m != mode {
		return nil, fmt.Errorf("%w: kem epoch %d key does not match mode %s", qerrors.ErrInvalidEncoding, epoch, mode)
	}

	key := &KEMKey{
		Epoch:     epoch,
		Mode:      mode,
		Public:    pk,
		Retired:   f.Bool(fieldKeyRetired),
		CreatedAt: time.UnixMilli(int64(f.Uint(fieldKeyCreated))).UTC(),
	}
	if f.Has(fieldKeySecret) {
		if key.Retired {
			return nil, fmt.Errorf("%w: retired kem epoch %d carries a secret", qerrors.ErrInvalidEncoding, epoch)
		}
		raw, err := f.Bytes(fieldKeySecret)
		if err != nil {
			return nil, err
		}
		if key.Secret, err = hybridkem.ParseSecretKey(raw); err != nil {
			return nil, err
		}
		if key.Secret.Public == nil {
			key.Secret.Public = pk
		} else if !key.Secret.Public.Equal(pk) {
			return nil, fmt.Errorf("%w: kem epoch %d secret belongs to another key", qerrors.ErrInvalidEncoding, epoch)
		}
	}
	return key, nil
}

func parseSignerKey(item []byte, epoch uint32) (*SignerKey, error) {
	f, err := decodeKeyItem(item, epoch)
	if err != nil {
		return nil, err
	}
	mode, err := hybridsig.ModeFromUint16(uint16(f.Uint(fieldKeyMode)))
	if err != nil {
		return nil, err
	}
	raw, err := f.Bytes(fieldKeyPublic)
	if err != nil {
		return nil, err
	}
	pk, err := hybridsig.ParsePublicKey(raw)
	if err != nil {
		return nil, err
	}
	if m, _ := pk.Mode(); m != mode {
		return nil, fmt.Errorf("%w: signer epoch %d key does not match mode %s", qerrors.ErrInvalidEncoding, epoch, mode)
	}

	key := &SignerKey{
		Epoch:     epoch,
		Mode:      mode,
		Public:    pk,
		CreatedAt: time.UnixMilli(int64(f.Uint(fieldKeyCreated))).UTC(),
	}
	if f.Has(fieldKeySecret) {
		raw, err := f.Bytes(fieldKeySecret)
		if err != nil {
			return nil, err
		}
		if key.Secret, err = hybridsig.ParseSecretKey(raw); err != nil {
			return nil, err
		}
		if key.Secret.Public == nil {
			key.Secret.Public = pk
		} else if !key.Secret.Public.Equal(pk) {
			return nil, fmt.Errorf("%w: signer epoch %d secret belongs to another key", qerrors.ErrInvalidEncoding, epoch)
		}
	}
	return key, nil
}
