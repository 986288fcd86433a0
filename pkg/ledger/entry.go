package ledger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/envelope"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/wire"
)

// Entry is one committed ledger record. It carries no plaintext unless
// MercyOpen is set, in which case Payload is a cleartext envelope.
type Entry struct {
	Index         uint64
	Payload       *envelope.Payload
	KEMCiphertext *hybridkem.Ciphertext
	KEMMode       hybridkem.Mode
	KEMEpoch      uint32
	Signature     *hybridsig.Signature
	SigMode       hybridsig.Mode
	SigEpoch      uint32
	MercyOpen     bool

	// CommittedAt is informational and not covered by the signature.
	CommittedAt time.Time
}

const (
	fieldEntryIndex       wire.Number = 1
	fieldEntryPayload     wire.Number = 2
	fieldEntryCiphertext  wire.Number = 3
	fieldEntryKEMMode     wire.Number = 4
	fieldEntryKEMEpoch    wire.Number = 5
	fieldEntrySignature   wire.Number = 6
	fieldEntrySigMode     wire.Number = 7
	fieldEntrySigEpoch    wire.Number = 8
	fieldEntryMercyOpen   wire.Number = 9
	fieldEntryCommittedAt wire.Number = 10
)

// MarshalBinary encodes the entry as a TypeEntry record.
func (e *Entry) MarshalBinary() ([]byte, error) {
	payload, err := e.Payload.MarshalBinary()
	if err != nil {
		return nil, err
	}
	ct, err := e.KEMCiphertext.MarshalBinary()
	if err != nil {
		return nil, err
	}
	sig, err := e.Signature.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return wire.NewEncoder(wire.TypeEntry).
		Uint(fieldEntryIndex, e.Index).
		Bytes(fieldEntryPayload, payload).
		Bytes(fieldEntryCiphertext, ct).
		Uint(fieldEntryKEMMode, uint64(e.KEMMode.Uint16())).
		Uint(fieldEntryKEMEpoch, uint64(e.KEMEpoch)).
		Bytes(fieldEntrySignature, sig).
		Uint(fieldEntrySigMode, uint64(e.SigMode.Uint16())).
		Uint(fieldEntrySigEpoch, uint64(e.SigEpoch)).
		Bool(fieldEntryMercyOpen, e.MercyOpen).
		Uint(fieldEntryCommittedAt, uint64(e.CommittedAt.UnixMilli())).
		Finish()
}

// ParseEntry decodes an entry record. Structural checks only; the
// ciphertext and signature are checked against their modes when used.
func ParseEntry(data []byte) (*Entry, error) {
	f, err := wire.Decode(wire.TypeEntry, data)
	if err != nil {
		return nil, err
	}
	for _, n := range []wire.Number{fieldEntryKEMMode, fieldEntrySigMode} {
		if f.Uint(n) > 0xffff {
			return nil, fmt.Errorf("%w: entry mode", qerrors.ErrInvalidEncoding)
		}
	}
	for _, n := range []wire.Number{fieldEntryKEMEpoch, fieldEntrySigEpoch} {
		if v := f.Uint(n); v == 0 || v > 0xffffffff {
			return nil, fmt.Errorf("%w: entry epoch", qerrors.ErrInvalidEncoding)
		}
	}

	e := &Entry{
		Index:       f.Uint(fieldEntryIndex),
		KEMEpoch:    uint32(f.Uint(fieldEntryKEMEpoch)),
		SigEpoch:    uint32(f.Uint(fieldEntrySigEpoch)),
		MercyOpen:   f.Bool(fieldEntryMercyOpen),
		CommittedAt: time.UnixMilli(int64(f.Uint(fieldEntryCommittedAt))).UTC(),
	}
	if e.KEMMode, err = hybridkem.ModeFromUint16(uint16(f.Uint(fieldEntryKEMMode))); err != nil {
		return nil, err
	}
	if e.SigMode, err = hybridsig.ModeFromUint16(uint16(f.Uint(fieldEntrySigMode))); err != nil {
		return nil, err
	}

	raw, err := f.Bytes(fieldEntryPayload)
	if err != nil {
		return nil, err
	}
	if e.Payload, err = envelope.ParsePayload(raw); err != nil {
		return nil, err
	}
	if e.MercyOpen != e.Payload.IsCleartext() {
		return nil, fmt.Errorf("%w: entry %d visibility does not match payload", qerrors.ErrInvalidEncoding, e.Index)
	}
	if raw, err = f.Bytes(fieldEntryCiphertext); err != nil {
		return nil, err
	}
	if e.KEMCiphertext, err = hybridkem.ParseCiphertext(raw); err != nil {
		return nil, err
	}
	if raw, err = f.Bytes(fieldEntrySignature); err != nil {
		return nil, err
	}
	if e.Signature, err = hybridsig.ParseSignature(raw); err != nil {
		return nil, err
	}
	return e, nil
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Payload = e.Payload.Clone()
	c.KEMCiphertext = &hybridkem.Ciphertext{Classical: clone(e.KEMCiphertext.Classical)}
	if pq := e.KEMCiphertext.PQ; pq != nil {
		c.KEMCiphertext.PQ = &hybridkem.Component{Family: pq.Family, Bytes: clone(pq.Bytes)}
	}
	c.Signature = &hybridsig.Signature{Classical: clone(e.Signature.Classical)}
	if pq := e.Signature.PQ; pq != nil {
		c.Signature.PQ = &hybridsig.Component{Family: pq.Family, Bytes: clone(pq.Bytes)}
	}
	return &c
}

// entryAAD binds a confidential payload to its position, its modes and
// epochs, the ledger it belongs to and the KEM transcript.
func entryAAD(id uuid.UUID, e *Entry, transcript []byte) []byte {
	var meta [20]byte
	binary.BigEndian.PutUint64(meta[0:], e.Index)
	binary.BigEndian.PutUint16(meta[8:], e.KEMMode.Uint16())
	binary.BigEndian.PutUint32(meta[10:], e.KEMEpoch)
	binary.BigEndian.PutUint16(meta[14:], e.SigMode.Uint16())
	binary.BigEndian.PutUint32(meta[16:], e.SigEpoch)
	return crypto.TranscriptHash(constants.DomainSeparatorEntryAAD, id[:], meta[:], transcript)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
