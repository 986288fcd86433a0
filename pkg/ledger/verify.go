package ledger

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
)

// VerifyChain reports whether the whole ledger verifies. See
// VerifyChainErr for the reason of a failure.
func (l *Ledger) VerifyChain(ctx context.Context) bool {
	return l.VerifyChainErr(ctx) == nil
}

// VerifyChainErr replays the hash chain from the genesis tip over every
// plaintext, checks the result against the stored tip, and verifies each
// entry's signature over its chain digest under the entry's own signer
// epoch and mode. Confidential entries are decrypted with the key ring, so
// a retired epoch makes verification fail. Errors wrap ErrChainBroken.
func (l *Ledger) VerifyChainErr(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return qerrors.ErrLedgerClosed
	}

	ctx, done := l.obs.OnVerify(ctx, len(l.entries))
	err := l.verifyLocked(ctx)
	done(err)
	return err
}

func (l *Ledger) verifyLocked(ctx context.Context) error {
	digests := make([][]byte, len(l.entries))
	var tip []byte
	for i := range l.entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		pt, err := l.readLocked(uint64(i), nil)
		if err != nil {
			return chainBroken(i, err)
		}
		tip = crypto.ChainDigest(tip, pt)
		crypto.Zeroize(pt)
		digests[i] = tip
	}
	if !crypto.ConstantTimeCompare(tip, l.state.Tip) {
		return fmt.Errorf("%w: replayed tip does not match stored tip", qerrors.ErrChainBroken)
	}

	signers := l.signerDirectory()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, e := range l.entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pk, err := signers.SignerKey(e.SigEpoch, e.SigMode)
			if err != nil {
				return chainBroken(i, err)
			}
			if err := hybridsig.VerifyErr(digests[i], e.Signature, pk, e.SigMode); err != nil {
				return chainBroken(i, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func chainBroken(index int, err error) error {
	return fmt.Errorf("%w: entry %d: %w", qerrors.ErrChainBroken, index, err)
}
