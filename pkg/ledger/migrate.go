package ledger

import (
	"context"
	"errors"
	"strconv"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/metrics"
)

// MigrateKEM switches new commits to a fresh key pair in mode and returns
// the new epoch. Earlier epochs keep their secrets, so their entries stay
// readable. Migrating to the current mode rotates the key.
func (l *Ledger) MigrateKEM(ctx context.Context, mode hybridkem.Mode) (uint32, error) {
	if err := mode.Validate(); err != nil {
		return 0, err
	}
	pk, sk, err := hybridkem.GenerateKeyPair(mode)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		sk.Zeroize()
		return 0, qerrors.ErrLedgerClosed
	}

	ctx, done := l.obs.OnMigrate(ctx, metrics.MigrationKEM, l.state.KEMMode.String(), mode.String())
	ring, key := l.keys.withKEM(mode, pk, sk, l.now().UTC())
	next := l.state
	next.KEMMode, next.KEMEpoch = mode, key.Epoch
	err = l.persistKeys(ctx, ring, &next)
	done(key.Epoch, err)
	if err != nil {
		sk.Zeroize()
		return 0, err
	}
	l.keys, l.state = ring, next
	return key.Epoch, nil
}

// MigrateSignature switches new commits to a fresh signing key in mode and
// returns the new epoch. The previous signing secret is erased; its public
// key stays in the ring so old signatures keep verifying.
func (l *Ledger) MigrateSignature(ctx context.Context, mode hybridsig.Mode) (uint32, error) {
	if err := mode.Validate(); err != nil {
		return 0, err
	}
	pk, sk, err := hybridsig.GenerateKeyPair(mode)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		sk.Zeroize()
		return 0, qerrors.ErrLedgerClosed
	}

	ctx, done := l.obs.OnMigrate(ctx, metrics.MigrationSignature, l.state.SigMode.String(), mode.String())
	ring, key, superseded := l.keys.withSigner(mode, pk, sk, l.now().UTC())
	next := l.state
	next.SigMode, next.SigEpoch = mode, key.Epoch
	err = l.persistKeys(ctx, ring, &next)
	done(key.Epoch, err)
	if err != nil {
		sk.Zeroize()
		return 0, err
	}
	l.keys, l.state = ring, next
	superseded.Zeroize()
	return key.Epoch, nil
}

// RetireKEMEpoch erases the secret key of a past KEM epoch. Confidential
// entries of that epoch become permanently unreadable and VerifyChain
// fails for the ledger from then on. The current epoch cannot be retired.
// Retiring an epoch twice is a no-op.
func (l *Ledger) RetireKEMEpoch(ctx context.Context, epoch uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return qerrors.ErrLedgerClosed
	}
	key, err := l.keys.KEM(epoch)
	if err != nil {
		return err
	}
	if epoch == l.state.KEMEpoch {
		return qerrors.NewConfigError("kem_epoch", strconv.FormatUint(uint64(epoch), 10), errors.New("cannot retire the current epoch"))
	}
	if key.Retired {
		return nil
	}

	ctx, done := l.obs.OnRetire(ctx, epoch)
	ring, secret := l.keys.withRetired(epoch)
	next := l.state
	err = l.persistKeys(ctx, ring, &next)
	done(err)
	if err != nil {
		return err
	}
	l.keys = ring
	secret.Zeroize()
	return nil
}
