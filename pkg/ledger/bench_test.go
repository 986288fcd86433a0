package ledger_test

import (
	"context"
	"testing"

	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/registry"
)

var benchModes = []struct {
	name string
	kem  hybridkem.Mode
	sig  hybridsig.Mode
}{
	{"legacy", hybridkem.LegacyMode(), hybridsig.LegacyMode()},
	{"hybrid-lattice", hybridkem.HybridMode(registry.Lattice), hybridsig.HybridMode(registry.LatticeDSA)},
	{"quantum-safe-lattice", hybridkem.QuantumSafeMode(registry.Lattice), hybridsig.PureMode(registry.LatticeDSA)},
}

func BenchmarkCommit(b *testing.B) {
	payload := make([]byte, 4096)
	for _, m := range benchModes {
		b.Run(m.name, func(b *testing.B) {
			l := newTestLedger(b, testOptions(m.kem, m.sig, true))
			ctx := context.Background()
			b.SetBytes(int64(len(payload)))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := l.Commit(ctx, payload); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkReadEntry(b *testing.B) {
	for _, m := range benchModes {
		b.Run(m.name, func(b *testing.B) {
			l := newTestLedger(b, testOptions(m.kem, m.sig, true))
			commitAll(b, l, "alpha")
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := l.ReadEntry(ctx, 0); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkVerifyChain(b *testing.B) {
	kem, sig := hybridLattice()
	l := newTestLedger(b, testOptions(kem, sig, true))
	for i := 0; i < 64; i++ {
		commitAll(b, l, "entry")
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := l.VerifyChainErr(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
