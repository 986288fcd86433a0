package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/envelope"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
)

// ReadEntry returns the plaintext at index using the key ring's secret for
// the entry's epoch. Entries of a retired epoch fail with ErrKeyRetired.
func (l *Ledger) ReadEntry(ctx context.Context, index uint64) ([]byte, error) {
	return l.read(ctx, index, nil)
}

// ReadEntryWith returns the plaintext at index using sk, which must be the
// secret key of the entry's era. A key of another era or mode fails with
// ErrWrongEraKey; it is never tried against the ciphertext.
func (l *Ledger) ReadEntryWith(ctx context.Context, index uint64, sk *hybridkem.SecretKey) ([]byte, error) {
	if sk == nil {
		return nil, qerrors.NewConfigError("kem_secret_key", "", qerrors.ErrInvalidPrivateKey)
	}
	return l.read(ctx, index, sk)
}

// ReadLatest returns the plaintext of the newest entry.
func (l *Ledger) ReadLatest(ctx context.Context) ([]byte, error) {
	n := l.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: ledger is empty", qerrors.ErrEntryNotFound)
	}
	return l.read(ctx, uint64(n-1), nil)
}

func (l *Ledger) read(ctx context.Context, index uint64, sk *hybridkem.SecretKey) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, qerrors.ErrLedgerClosed
	}

	_, done := l.obs.OnRead(ctx, index)
	pt, err := l.readLocked(index, sk)
	done(err)
	return pt, err
}

func (l *Ledger) readLocked(index uint64, sk *hybridkem.SecretKey) ([]byte, error) {
	if index >= uint64(len(l.entries)) {
		return nil, notFound(index)
	}
	e := l.entries[index]
	if e.MercyOpen {
		return clone(e.Payload.Ciphertext), nil
	}

	era, eraErr := l.keys.KEM(e.KEMEpoch)
	if sk == nil {
		if eraErr != nil {
			return nil, eraErr
		}
		if era.Retired {
			return nil, fmt.Errorf("%w: kem epoch %d", qerrors.ErrKeyRetired, e.KEMEpoch)
		}
		if era.Secret == nil {
			return nil, wrongEra(e)
		}
		sk = era.Secret
	} else if eraErr == nil && !era.Public.Equal(sk.Public) {
		return nil, wrongEra(e)
	}
	return openEntry(l.state.ID, e, sk)
}

// openEntry decrypts a confidential entry. The key's mode must match the
// entry's before any decapsulation is attempted.
func openEntry(id uuid.UUID, e *Entry, sk *hybridkem.SecretKey) ([]byte, error) {
	if m, err := sk.Mode(); err != nil || m != e.KEMMode {
		return nil, wrongEra(e)
	}
	if sk.Public == nil {
		return nil, qerrors.NewConfigError("kem_secret_key", e.KEMMode.String(), qerrors.ErrInvalidPublicKey)
	}

	ss, err := hybridkem.Decapsulate(e.KEMCiphertext, sk, e.KEMMode)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(ss)

	transcript := hybridkem.Transcript(sk.Public, e.KEMCiphertext)
	key, err := envelope.DeriveKey(ss, constants.LabelLedgerEnvelope, transcript)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(key)
	return envelope.Decrypt(key, e.Payload, entryAAD(id, e, transcript))
}

func wrongEra(e *Entry) error {
	return fmt.Errorf("%w: entry %d is %s epoch %d", qerrors.ErrWrongEraKey, e.Index, e.KEMMode, e.KEMEpoch)
}
