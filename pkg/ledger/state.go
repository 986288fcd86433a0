package ledger

import (
	"fmt"

	"github.com/google/uuid"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/wire"
)

// state is the mutable head of a ledger, persisted next to the entries.
type state struct {
	ID           uuid.UUID
	Tip          []byte // nil before the first commit
	Count        uint64
	KEMMode      hybridkem.Mode
	SigMode      hybridsig.Mode
	KEMEpoch     uint32
	SigEpoch     uint32
	Confidential bool
}

const (
	fieldStateID           wire.Number = 1
	fieldStateTip          wire.Number = 2
	fieldStateCount        wire.Number = 3
	fieldStateKEMMode      wire.Number = 4
	fieldStateSigMode      wire.Number = 5
	fieldStateKEMEpoch     wire.Number = 6
	fieldStateSigEpoch     wire.Number = 7
	fieldStateConfidential wire.Number = 8
)

func (s *state) MarshalBinary() ([]byte, error) {
	return wire.NewEncoder(wire.TypeState).
		Bytes(fieldStateID, s.ID[:]).
		Bytes(fieldStateTip, s.Tip).
		Uint(fieldStateCount, s.Count).
		Uint(fieldStateKEMMode, uint64(s.KEMMode.Uint16())).
		Uint(fieldStateSigMode, uint64(s.SigMode.Uint16())).
		Uint(fieldStateKEMEpoch, uint64(s.KEMEpoch)).
		Uint(fieldStateSigEpoch, uint64(s.SigEpoch)).
		Bool(fieldStateConfidential, s.Confidential).
		Finish()
}

func parseState(data []byte) (*state, error) {
	f, err := wire.Decode(wire.TypeState, data)
	if err != nil {
		return nil, err
	}
	raw, err := f.Bytes(fieldStateID)
	if err != nil {
		return nil, err
	}
	s := &state{
		Count:        f.Uint(fieldStateCount),
		Confidential: f.Bool(fieldStateConfidential),
	}
	if s.ID, err = uuid.FromBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: ledger id: %v", qerrors.ErrInvalidEncoding, err)
	}
	if f.Has(fieldStateTip) {
		if s.Tip, err = f.Bytes(fieldStateTip); err != nil {
			return nil, err
		}
	}
	if (s.Tip == nil) != (s.Count == 0) {
		return nil, fmt.Errorf("%w: state tip does not match entry count", qerrors.ErrInvalidEncoding)
	}
	for _, n := range []wire.Number{fieldStateKEMMode, fieldStateSigMode} {
		if f.Uint(n) > 0xffff {
			return nil, fmt.Errorf("%w: state mode", qerrors.ErrInvalidEncoding)
		}
	}
	for _, n := range []wire.Number{fieldStateKEMEpoch, fieldStateSigEpoch} {
		if v := f.Uint(n); v == 0 || v > 0xffffffff {
			return nil, fmt.Errorf("%w: state epoch", qerrors.ErrInvalidEncoding)
		}
	}
	s.KEMEpoch = uint32(f.Uint(fieldStateKEMEpoch))
	s.SigEpoch = uint32(f.Uint(fieldStateSigEpoch))
	if s.KEMMode, err = hybridkem.ModeFromUint16(uint16(f.Uint(fieldStateKEMMode))); err != nil {
		return nil, err
	}
	if s.SigMode, err = hybridsig.ModeFromUint16(uint16(f.Uint(fieldStateSigMode))); err != nil {
		return nil, err
	}
	return s, nil
}
