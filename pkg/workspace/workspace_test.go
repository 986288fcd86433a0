package workspace_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/config"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/ledger"
	"github.com/pzverkov/quantum-agility/pkg/metrics"
	"github.com/pzverkov/quantum-agility/pkg/registry"
	"github.com/pzverkov/quantum-agility/pkg/store"
	"github.com/pzverkov/quantum-agility/pkg/workspace"
)

var pass = []byte("open sesame")

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Backend = backend
	cfg.KeyFile = config.KeyFileConfig{Time: 1, MemoryKiB: 64, Threads: 1}
	require.NoError(t, cfg.Validate())
	return cfg
}

func quiet() ledger.Options {
	return ledger.Options{
		Collector: metrics.NewCollector(nil),
		Tracer:    metrics.NoOpTracer{},
		Logger:    metrics.NullLogger(),
	}
}

func TestInitAndReopen(t *testing.T) {
	for _, backend := range []string{store.BackendBadger, store.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, backend)
			assert.False(t, workspace.Exists(cfg))

			l, err := workspace.Init(ctx, cfg, pass, quiet())
			require.NoError(t, err)
			assert.True(t, workspace.Exists(cfg))
			_, err = l.Commit(ctx, []byte("kept on disk"))
			require.NoError(t, err)
			_, err = l.MigrateKEM(ctx, hybridkem.QuantumSafeMode(registry.Lattice))
			require.NoError(t, err)
			_, err = l.Commit(ctx, []byte("after migration"))
			require.NoError(t, err)
			require.NoError(t, l.Close())

			l, err = workspace.Open(ctx, cfg, pass, quiet())
			require.NoError(t, err)
			defer l.Close()
			assert.Equal(t, 2, l.Len())
			pt, err := l.ReadEntry(ctx, 0)
			require.NoError(t, err)
			assert.Equal(t, "kept on disk", string(pt))
			kem, _ := l.Modes()
			assert.Equal(t, hybridkem.QuantumSafeMode(registry.Lattice), kem)
			assert.True(t, l.VerifyChain(ctx))
		})
	}
}

func TestInitRefusesExistingLedger(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, store.BackendSQLite)
	l, err := workspace.Init(ctx, cfg, pass, quiet())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = workspace.Init(ctx, cfg, pass, quiet())
	assert.True(t, qerrors.IsConfig(err))
}

func TestOpenWithWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, store.BackendSQLite)
	l, err := workspace.Init(ctx, cfg, pass, quiet())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = workspace.Open(ctx, cfg, []byte("guess"), quiet())
	assert.ErrorIs(t, err, qerrors.ErrBadPassphrase)

	_, err = workspace.Open(ctx, cfg, nil, quiet())
	assert.True(t, qerrors.IsConfig(err))
}

func TestMaxEntrySizeGate(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, store.BackendSQLite)
	cfg.MaxEntrySize = 16

	opts := quiet()
	opts.Gate = ledger.GateFunc(func(_ context.Context, p ledger.Proposal) bool {
		return !strings.HasPrefix(string(p.Plaintext), "deny")
	})
	l, err := workspace.Init(ctx, cfg, pass, opts)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Commit(ctx, []byte("short"))
	require.NoError(t, err)
	_, err = l.Commit(ctx, []byte(strings.Repeat("x", 17)))
	assert.ErrorIs(t, err, qerrors.ErrPolicyDenied)
	_, err = l.Commit(ctx, []byte("deny me"))
	assert.ErrorIs(t, err, qerrors.ErrPolicyDenied)
}

func TestCommitRateGate(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, store.BackendSQLite)
	cfg.CommitRate = 0.001
	cfg.CommitBurst = 2

	l, err := workspace.Init(ctx, cfg, pass, quiet())
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 2; i++ {
		_, err = l.Commit(ctx, []byte("burst"))
		require.NoError(t, err)
	}
	_, err = l.Commit(ctx, []byte("over"))
	assert.ErrorIs(t, err, qerrors.ErrPolicyDenied)
	assert.Equal(t, 2, l.Len())
}

func TestReadKeyRing(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, store.BackendBadger)
	l, err := workspace.Init(ctx, cfg, pass, quiet())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	ring, err := workspace.ReadKeyRing(cfg, pass)
	require.NoError(t, err)
	assert.Len(t, ring.KEMKeys(), 1)
	assert.Len(t, ring.SignerKeys(), 1)
}
