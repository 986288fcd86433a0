package main

import (
	"context"
	"errors"
	"fmt"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/ledger"
	"github.com/pzverkov/quantum-agility/pkg/metrics"
	"github.com/pzverkov/quantum-agility/pkg/registry"
)

func demoCommand(args []string) error {
	fs, _ := newFlagSet("demo", "Commit, migrate to a quantum-safe KEM and verify, on an in-memory ledger.")
	verbose := fs.Bool("v", false, "Print per-entry details")
	_ = fs.Parse(args)
	return runDemo(context.Background(), *verbose)
}

// migrationFamily prefers a code-based family and falls back to pure
// lattice when the build has no liboqs.
func migrationFamily() registry.KEMFamily {
	for _, f := range []registry.KEMFamily{registry.HQC, registry.McEliece} {
		if d, err := registry.KEM(f); err == nil && d.Supported {
			return f
		}
	}
	return registry.Lattice
}

func runDemo(ctx context.Context, verbose bool) error {
	fmt.Fprintln(stdout, "╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintln(stdout, "║      PQ-Ledger Crypto-Agility Demo                        ║")
	fmt.Fprintln(stdout, "╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintln(stdout)

	l, err := ledger.New(ctx, ledger.Options{
		KEMMode:      hybridkem.HybridMode(registry.Lattice),
		SigMode:      hybridsig.HybridMode(registry.LatticeDSA),
		Confidential: true,
		Logger:       metrics.NullLogger(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	kem, sig := l.Modes()
	fmt.Fprintf(stdout, "✓ Ledger %s\n  KEM %s, signature %s\n\n", l.ID(), kem, sig)

	for _, msg := range []string{"alpha", "beta"} {
		if err := demoCommit(ctx, l, msg, verbose); err != nil {
			return err
		}
	}
	if err := demoVerify(ctx, l); err != nil {
		return err
	}

	eraOne, err := l.KeyRing().KEM(1)
	if err != nil {
		return err
	}
	target := hybridkem.QuantumSafeMode(migrationFamily())
	epoch, err := l.MigrateKEM(ctx, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\n✓ Migrated KEM to %s (epoch %d)\n\n", target, epoch)

	if err := demoCommit(ctx, l, "gamma", verbose); err != nil {
		return err
	}

	// The first era's key still opens the first era's entries, and only those.
	pt, err := l.ReadEntryWith(ctx, 0, eraOne.Secret)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Entry 0 with the epoch 1 key: %q\n", pt)
	if _, err := l.ReadEntryWith(ctx, 2, eraOne.Secret); !errors.Is(err, qerrors.ErrWrongEraKey) {
		return fmt.Errorf("entry 2 opened with the epoch 1 key: %v", err)
	}
	fmt.Fprintln(stdout, "✓ Entry 2 refuses the epoch 1 key")

	return demoVerify(ctx, l)
}

func demoCommit(ctx context.Context, l *ledger.Ledger, msg string, verbose bool) error {
	index, err := l.Commit(ctx, []byte(msg))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Committed %q as entry %d\n", msg, index)
	if verbose {
		e, err := l.Entry(index)
		if err != nil {
			return err
		}
		raw, err := e.MarshalBinary()
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "  KEM %s@%d, signature %s@%d, %s stored\n",
			e.KEMMode, e.KEMEpoch, e.SigMode, e.SigEpoch, formatSize(int64(len(raw))))
	}
	return nil
}

func demoVerify(ctx context.Context, l *ledger.Ledger) error {
	if err := l.VerifyChainErr(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Chain of %d entries verified\n", l.Len())
	return nil
}
