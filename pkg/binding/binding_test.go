package binding

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/registry"
)

// quantumSafeKEM picks a code-based mode when one is compiled in and the
// lattice mode otherwise.
func quantumSafeKEM(t *testing.T) int {
	t.Helper()
	if d, _ := registry.KEM(registry.HQC); d.Supported {
		return KEMQuantumSafeHQC
	}
	if d, _ := registry.KEM(registry.McEliece); d.Supported && !testing.Short() {
		return KEMQuantumSafeMcEliece
	}
	return KEMQuantumSafeLattice
}

func TestMobileScenario(t *testing.T) {
	l, err := CreateLedger(KEMHybridLattice, SigHybridLatticeDSA, true)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Commit([]byte("alpha")))
	require.NoError(t, l.Commit([]byte("beta")))
	require.NoError(t, l.Migrate(quantumSafeKEM(t)))
	require.NoError(t, l.Commit([]byte("gamma")))

	latest, err := l.ReadLatest()
	require.NoError(t, err)
	assert.Equal(t, "gamma", string(latest))
	first, err := l.Read(0)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(first))
	assert.Equal(t, int64(3), l.Len())
	assert.Equal(t, KEMModeName(quantumSafeKEM(t)), l.KEMMode())
	assert.True(t, l.VerifyChain())
}

func TestMobileSignatureMigration(t *testing.T) {
	l, err := CreateLedger(KEMLegacy, SigLegacy, false)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Commit([]byte("ed25519")))
	require.NoError(t, l.MigrateSignature(SigPureLatticeDSA))
	require.NoError(t, l.Commit([]byte("ml-dsa")))
	assert.Equal(t, "pure-lattice-dsa", l.SigMode())
	assert.True(t, l.VerifyChain())
}

func TestModeConstants(t *testing.T) {
	assert.Equal(t, "legacy", KEMModeName(KEMLegacy))
	assert.Equal(t, "hybrid-lattice", KEMModeName(KEMHybridLattice))
	assert.Equal(t, "quantum-safe-mceliece", KEMModeName(KEMQuantumSafeMcEliece))
	assert.Equal(t, "pure-hash-dsa", SigModeName(SigPureHashDSA))
	assert.Equal(t, "", KEMModeName(-1))
	assert.Equal(t, "", SigModeName(99))

	assert.True(t, KEMModeSupported(KEMHybridLattice))
	assert.True(t, SigModeSupported(SigHybridLatticeDSA))
	assert.False(t, KEMModeSupported(42))

	_, err := CreateLedger(42, SigLegacy, true)
	assert.True(t, qerrors.IsConfig(err))
	_, err = CreateLedger(KEMLegacy, -1, true)
	assert.True(t, qerrors.IsConfig(err))
}

func TestMobileErrors(t *testing.T) {
	l, err := CreateLedger(KEMLegacy, SigLegacy, true)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.ReadLatest()
	assert.ErrorIs(t, err, qerrors.ErrEntryNotFound)
	_, err = l.Read(-1)
	assert.ErrorIs(t, err, qerrors.ErrEntryNotFound)
	assert.Error(t, l.Migrate(99))
	assert.Error(t, l.MigrateSignature(99))
}

func TestPersistentLedger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	l, err := CreatePersistentLedger(dir, "pin-1234", KEMHybridLattice, SigHybridLatticeDSA, true)
	require.NoError(t, err)
	id := l.ID()
	require.NoError(t, l.Commit([]byte("persisted")))
	require.NoError(t, l.Close())

	_, err = OpenPersistentLedger(dir, "pin-0000")
	assert.ErrorIs(t, err, qerrors.ErrBadPassphrase)

	l, err = OpenPersistentLedger(dir, "pin-1234")
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, id, l.ID())
	latest, err := l.ReadLatest()
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(latest))
	assert.True(t, l.VerifyChain())
}
