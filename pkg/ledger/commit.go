package ledger

import (
	"context"
	"fmt"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/envelope"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/metrics"
)

// Commit appends plaintext and returns its index. The entry is
// encapsulated to the current KEM epoch and signed by the current signer
// epoch. On any error, including a gate denial, the ledger is unchanged.
func (l *Ledger) Commit(ctx context.Context, plaintext []byte) (uint64, error) {
	if len(plaintext) > constants.MaxPayloadSize {
		return 0, fmt.Errorf("%w: %d bytes", qerrors.ErrMessageTooLarge, len(plaintext))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, qerrors.ErrLedgerClosed
	}

	index := uint64(len(l.entries))
	ctx, done := l.obs.OnCommit(ctx, index, len(plaintext), l.state.KEMMode.String(), l.state.SigMode.String())
	err := l.commitLocked(ctx, index, plaintext)
	done(err)
	if err != nil {
		return 0, err
	}
	return index, nil
}

func (l *Ledger) commitLocked(ctx context.Context, index uint64, plaintext []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	proposal := Proposal{
		LedgerID:     l.state.ID.String(),
		Index:        index,
		Plaintext:    plaintext,
		KEMMode:      l.state.KEMMode,
		SigMode:      l.state.SigMode,
		Confidential: l.state.Confidential,
	}
	if !l.gate.Allow(ctx, proposal) {
		return qerrors.NewPolicyError(fmt.Sprintf("entry %d rejected by gate", index))
	}

	kemKey, err := l.keys.KEM(l.state.KEMEpoch)
	if err != nil {
		return err
	}
	sigKey, err := l.keys.Signer(l.state.SigEpoch)
	if err != nil {
		return err
	}
	if sigKey.Secret == nil {
		return qerrors.NewConfigError("signer_key", sigKey.Mode.String(), qerrors.ErrInvalidPrivateKey)
	}

	_, endEncap := l.obs.Step(ctx, metrics.SpanKEMEncapsulate, index)
	ct, ss, err := hybridkem.Encapsulate(kemKey.Public, kemKey.Mode)
	endEncap(err)
	if err != nil {
		return err
	}
	defer crypto.Zeroize(ss)

	entry := &Entry{
		Index:         index,
		KEMCiphertext: ct,
		KEMMode:       kemKey.Mode,
		KEMEpoch:      kemKey.Epoch,
		SigMode:       sigKey.Mode,
		SigEpoch:      sigKey.Epoch,
		CommittedAt:   l.now().UTC(),
	}
	if l.state.Confidential {
		if entry.Payload, err = sealPayload(l, entry, kemKey.Public, ss, plaintext); err != nil {
			return err
		}
	} else {
		entry.Payload = envelope.Cleartext(plaintext)
		entry.MercyOpen = true
	}

	digest := crypto.ChainDigest(l.state.Tip, plaintext)
	_, endSign := l.obs.Step(ctx, metrics.SpanSign, index)
	entry.Signature, err = hybridsig.Sign(digest, sigKey.Secret, sigKey.Mode)
	endSign(err)
	if err != nil {
		return err
	}

	encoded, err := entry.MarshalBinary()
	if err != nil {
		return err
	}
	next := l.state
	next.Tip = digest
	next.Count = index + 1
	stateData, err := next.MarshalBinary()
	if err != nil {
		return err
	}
	appendCtx, endAppend := l.obs.Step(ctx, metrics.SpanStoreAppend, index)
	err = l.store.Append(appendCtx, index, encoded, stateData)
	endAppend(err)
	if err != nil {
		return err
	}

	// Round-trip the stored form so memory matches what Open would load.
	stored, err := ParseEntry(encoded)
	if err != nil {
		return err
	}
	l.entries = append(l.entries, stored)
	l.state = next
	return nil
}

func sealPayload(l *Ledger, e *Entry, pk *hybridkem.PublicKey, ss, plaintext []byte) (*envelope.Payload, error) {
	transcript := hybridkem.Transcript(pk, e.KEMCiphertext)
	key, err := envelope.DeriveKey(ss, constants.LabelLedgerEnvelope, transcript)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(key)
	return envelope.Encrypt(key, plaintext, entryAAD(l.state.ID, e, transcript))
}
