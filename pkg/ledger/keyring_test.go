package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/ledger"
	"github.com/pzverkov/quantum-agility/pkg/registry"
)

func migratedRing(t testing.TB) *ledger.KeyRing {
	t.Helper()
	ctx := context.Background()
	l := newTestLedger(t, testOptions(hybridkem.LegacyMode(), hybridsig.LegacyMode(), true))
	_, err := l.MigrateKEM(ctx, hybridkem.HybridMode(registry.Lattice))
	require.NoError(t, err)
	_, err = l.MigrateSignature(ctx, hybridsig.HybridMode(registry.LatticeDSA))
	require.NoError(t, err)
	_, err = l.MigrateKEM(ctx, hybridkem.QuantumSafeMode(registry.Lattice))
	require.NoError(t, err)
	require.NoError(t, l.RetireKEMEpoch(ctx, 1))

	data, err := l.KeyRing().MarshalBinary()
	require.NoError(t, err)
	ring, err := ledger.ParseKeyRing(data)
	require.NoError(t, err)
	return ring
}

func TestKeyRingRoundTrip(t *testing.T) {
	ring := migratedRing(t)

	kems := ring.KEMKeys()
	require.Len(t, kems, 3)
	for i, k := range kems {
		assert.Equal(t, uint32(i+1), k.Epoch)
		assert.False(t, k.CreatedAt.IsZero())
	}
	assert.True(t, kems[0].Retired)
	assert.Nil(t, kems[0].Secret)
	assert.Equal(t, hybridkem.HybridMode(registry.Lattice), kems[1].Mode)
	require.NotNil(t, kems[2].Secret)
	assert.True(t, kems[2].Secret.Public.Equal(kems[2].Public))

	sigs := ring.SignerKeys()
	require.Len(t, sigs, 2)
	assert.Nil(t, sigs[0].Secret)
	assert.NotNil(t, sigs[1].Secret)
	assert.Equal(t, hybridsig.HybridMode(registry.LatticeDSA), sigs[1].Mode)
}

func TestKeyRingLookups(t *testing.T) {
	ring := migratedRing(t)

	_, err := ring.KEM(0)
	assert.ErrorIs(t, err, qerrors.ErrUnknownEpoch)
	_, err = ring.KEM(4)
	assert.ErrorIs(t, err, qerrors.ErrUnknownEpoch)
	_, err = ring.Signer(3)
	assert.ErrorIs(t, err, qerrors.ErrUnknownEpoch)

	pk, err := ring.SignerKey(1, hybridsig.LegacyMode())
	require.NoError(t, err)
	assert.NotNil(t, pk)
	_, err = ring.SignerKey(1, hybridsig.HybridMode(registry.LatticeDSA))
	assert.ErrorIs(t, err, qerrors.ErrWrongEraKey)
}

func TestKeyRingPublicOnly(t *testing.T) {
	ring := migratedRing(t)
	public := ring.PublicOnly()

	for _, k := range public.KEMKeys() {
		assert.Nil(t, k.Secret)
	}
	for _, k := range public.SignerKeys() {
		assert.Nil(t, k.Secret)
	}
	latest, err := ring.KEM(3)
	require.NoError(t, err)
	assert.NotNil(t, latest.Secret, "PublicOnly must not strip the original ring")

	data, err := public.MarshalBinary()
	require.NoError(t, err)
	parsed, err := ledger.ParseKeyRing(data)
	require.NoError(t, err)
	assert.Len(t, parsed.KEMKeys(), 3)
}

func TestKeyRingZeroize(t *testing.T) {
	ring := migratedRing(t)
	latest, err := ring.KEM(3)
	require.NoError(t, err)
	secret := latest.Secret
	ring.Zeroize()
	assert.Nil(t, secret.PQ)
	assert.Nil(t, secret.Classical)
}

func TestParseKeyRingRejectsMalformed(t *testing.T) {
	_, err := ledger.ParseKeyRing([]byte("not a ring"))
	assert.Error(t, err)

	ring := migratedRing(t)
	data, err := ring.MarshalBinary()
	require.NoError(t, err)
	for _, n := range []int{1, len(data) / 2, len(data) - 1} {
		_, err := ledger.ParseKeyRing(data[:n])
		assert.Error(t, err, "truncated at %d", n)
	}
}

func FuzzParseKeyRing(f *testing.F) {
	data, err := migratedRing(f).MarshalBinary()
	require.NoError(f, err)
	f.Add(data)
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		ring, err := ledger.ParseKeyRing(data)
		if err != nil {
			return
		}
		again, err := ring.MarshalBinary()
		if err != nil {
			t.Fatalf("parsed ring does not marshal: %v", err)
		}
		if _, err := ledger.ParseKeyRing(again); err != nil {
			t.Fatalf("re-encoded ring does not parse: %v", err)
		}
	})
}
