package hybridsig_test

import (
	"errors"
	"testing"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/registry"
)

func supportedModes(t *testing.T) []hybridsig.Mode {
	t.Helper()
	modes := []hybridsig.Mode{hybridsig.LegacyMode()}
	for _, d := range registry.Signatures() {
		if !d.Supported || (d.Family == registry.HashDSA && testing.Short()) {
			continue
		}
		modes = append(modes, hybridsig.HybridMode(d.Family), hybridsig.PureMode(d.Family))
	}
	return modes
}

func TestSignVerifyAllModes(t *testing.T) {
	msg := []byte("ledger digest")
	for _, mode := range supportedModes(t) {
		t.Run(mode.String(), func(t *testing.T) {
			pk, sk, err := hybridsig.GenerateKeyPair(mode)
			if err != nil {
				t.Fatalf("GenerateKeyPair failed: %v", err)
			}
			defer sk.Zeroize()

			sig, err := hybridsig.Sign(msg, sk, mode)
			if err != nil {
				t.Fatalf("Sign failed: %v", err)
			}
			if !hybridsig.Verify(msg, sig, pk, mode) {
				t.Fatal("valid signature rejected")
			}
			if mode.HasClassical() != (sig.Classical != nil) || mode.HasPostQuantum() != (sig.PQ != nil) {
				t.Error("signature components do not match mode")
			}
		})
	}
}

// TestBitFlipsRejected flips every bit of the message and sampled bits of
// each signature component.
func TestBitFlipsRejected(t *testing.T) {
	msg := []byte("tip||data")
	for _, mode := range []hybridsig.Mode{hybridsig.LegacyMode(), hybridsig.HybridMode(registry.LatticeDSA)} {
		t.Run(mode.String(), func(t *testing.T) {
			pk, sk, err := hybridsig.GenerateKeyPair(mode)
			if err != nil {
				t.Fatal(err)
			}
			sig, err := hybridsig.Sign(msg, sk, mode)
			if err != nil {
				t.Fatal(err)
			}

			for i := 0; i < len(msg)*8; i++ {
				m := append([]byte{}, msg...)
				m[i/8] ^= 1 << (i % 8)
				if hybridsig.Verify(m, sig, pk, mode) {
					t.Fatalf("message with bit %d flipped verified", i)
				}
			}

			flip := func(b []byte, name string) {
				for _, pos := range []int{0, len(b) / 2, len(b) - 1} {
					for bit := 0; bit < 8; bit++ {
						b[pos] ^= 1 << bit
						if hybridsig.Verify(msg, sig, pk, mode) {
							t.Errorf("%s with byte %d bit %d flipped verified", name, pos, bit)
						}
						b[pos] ^= 1 << bit
					}
				}
			}
			flip(sig.Classical, "classical signature")
			if sig.PQ != nil {
				flip(sig.PQ.Bytes, "post-quantum signature")
			}

			if !hybridsig.Verify(msg, sig, pk, mode) {
				t.Error("restored signature no longer verifies")
			}
		})
	}
}

func TestCrossKeyRejected(t *testing.T) {
	msg := []byte("cross key")
	for _, mode := range []hybridsig.Mode{
		hybridsig.LegacyMode(),
		hybridsig.HybridMode(registry.LatticeDSA),
		hybridsig.PureMode(registry.LatticeDSA),
	} {
		_, sk, err := hybridsig.GenerateKeyPair(mode)
		if err != nil {
			t.Fatal(err)
		}
		otherPK, _, err := hybridsig.GenerateKeyPair(mode)
		if err != nil {
			t.Fatal(err)
		}
		sig, err := hybridsig.Sign(msg, sk, mode)
		if err != nil {
			t.Fatal(err)
		}
		if hybridsig.Verify(msg, sig, otherPK, mode) {
			t.Errorf("%v: signature verified under another key pair", mode)
		}
	}
}

// TestHybridRequiresBoth checks the AND combination: one valid half is not
// enough.
func TestHybridRequiresBoth(t *testing.T) {
	mode := hybridsig.HybridMode(registry.LatticeDSA)
	msg := []byte("both halves")
	pk, sk, err := hybridsig.GenerateKeyPair(mode)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := hybridsig.Sign(msg, sk, mode)
	if err != nil {
		t.Fatal(err)
	}

	onlyPQ := &hybridsig.Signature{PQ: sig.PQ}
	if hybridsig.Verify(msg, onlyPQ, pk, mode) {
		t.Error("hybrid verification accepted a missing classical signature")
	}
	onlyClassical := &hybridsig.Signature{Classical: sig.Classical}
	if hybridsig.Verify(msg, onlyClassical, pk, mode) {
		t.Error("hybrid verification accepted a missing post-quantum signature")
	}

	// A valid classical half from a different message does not help.
	other, _ := hybridsig.Sign([]byte("other"), sk, mode)
	mixed := &hybridsig.Signature{Classical: other.Classical, PQ: sig.PQ}
	if hybridsig.Verify(msg, mixed, pk, mode) {
		t.Error("hybrid verification accepted a mismatched classical half")
	}
}

// TestModeConfusionRejected covers downgrade and misbinding attempts.
func TestModeConfusionRejected(t *testing.T) {
	msg := []byte("mode confusion")
	hybrid := hybridsig.HybridMode(registry.LatticeDSA)
	pure := hybridsig.PureMode(registry.LatticeDSA)

	pk, sk, err := hybridsig.GenerateKeyPair(hybrid)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := hybridsig.Sign(msg, sk, hybrid)
	if err != nil {
		t.Fatal(err)
	}

	purePK := &hybridsig.PublicKey{PQ: pk.PQ}
	if hybridsig.Verify(msg, sig, purePK, pure) {
		t.Error("Pure verification accepted a signature carrying a classical part")
	}
	legacyPK := &hybridsig.PublicKey{Classical: pk.Classical}
	if hybridsig.Verify(msg, sig, legacyPK, hybridsig.LegacyMode()) {
		t.Error("Legacy verification accepted a signature carrying a post-quantum part")
	}

	// A stripped signature is a valid Pure signature, never a Hybrid one.
	stripped := &hybridsig.Signature{PQ: sig.PQ}
	if !hybridsig.Verify(msg, stripped, purePK, pure) {
		t.Error("valid post-quantum half rejected under Pure")
	}
	if hybridsig.Verify(msg, stripped, pk, hybrid) {
		t.Error("stripped signature accepted under Hybrid")
	}
}

func TestFamilyTagMustMatch(t *testing.T) {
	mode := hybridsig.PureMode(registry.LatticeDSA)
	msg := []byte("tag")
	pk, sk, err := hybridsig.GenerateKeyPair(mode)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := hybridsig.Sign(msg, sk, mode)
	if err != nil {
		t.Fatal(err)
	}
	sig.PQ.Family = registry.HashDSA
	if hybridsig.Verify(msg, sig, pk, mode) {
		t.Error("signature with a foreign family tag verified")
	}
	err = hybridsig.VerifyErr(msg, sig, pk, mode)
	if !errors.Is(err, qerrors.ErrSignatureInvalid) || !qerrors.IsCrypto(err) {
		t.Errorf("VerifyErr: got %v, want opaque ErrSignatureInvalid", err)
	}
}

func TestSignRejectsMismatchedKey(t *testing.T) {
	_, sk, err := hybridsig.GenerateKeyPair(hybridsig.LegacyMode())
	if err != nil {
		t.Fatal(err)
	}
	_, err = hybridsig.Sign([]byte("m"), sk, hybridsig.HybridMode(registry.LatticeDSA))
	if !errors.Is(err, qerrors.ErrModeMismatch) {
		t.Errorf("got %v, want ErrModeMismatch", err)
	}
}

func TestUnsupportedFamily(t *testing.T) {
	if d, _ := registry.Signature(registry.CompactLatticeDSA); d.Supported {
		t.Skip("Falcon is compiled in")
	}
	_, _, err := hybridsig.GenerateKeyPair(hybridsig.PureMode(registry.CompactLatticeDSA))
	if !errors.Is(err, qerrors.ErrUnsupportedFamily) {
		t.Errorf("got %v, want ErrUnsupportedFamily", err)
	}
}

func TestEncodingRoundTrip(t *testing.T) {
	mode := hybridsig.HybridMode(registry.LatticeDSA)
	msg := []byte("encoded")
	pk, sk, err := hybridsig.GenerateKeyPair(mode)
	if err != nil {
		t.Fatal(err)
	}

	skBytes, err := sk.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	sk2, err := hybridsig.ParseSecretKey(skBytes)
	if err != nil {
		t.Fatalf("ParseSecretKey failed: %v", err)
	}
	sig, err := hybridsig.Sign(msg, sk2, mode)
	if err != nil {
		t.Fatal(err)
	}

	sigBytes, err := sig.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	sig2, err := hybridsig.ParseSignature(sigBytes)
	if err != nil {
		t.Fatalf("ParseSignature failed: %v", err)
	}
	pkBytes, err := pk.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	pk2, err := hybridsig.ParsePublicKey(pkBytes)
	if err != nil {
		t.Fatalf("ParsePublicKey failed: %v", err)
	}
	if !pk2.Equal(pk) || !sk2.Public.Equal(pk) {
		t.Error("public key changed across encoding")
	}
	if !hybridsig.Verify(msg, sig2, pk2, mode) {
		t.Error("decoded signature does not verify")
	}
}

func TestModeParsing(t *testing.T) {
	for _, in := range []string{"legacy", "hybrid-lattice-dsa", "pure-lattice-dsa", "pure-hash-dsa"} {
		m, err := hybridsig.ParseMode(in)
		if err != nil {
			t.Errorf("ParseMode(%q) failed: %v", in, err)
			continue
		}
		if m.String() != in {
			t.Errorf("ParseMode(%q).String() = %q", in, m.String())
		}
		back, err := hybridsig.ModeFromUint16(m.Uint16())
		if err != nil || back != m {
			t.Errorf("Uint16 round trip of %v: %v, %v", m, back, err)
		}
	}
	for _, in := range []string{"quantum-safe-lattice-dsa", "hybrid-lattice", "pure"} {
		if _, err := hybridsig.ParseMode(in); !qerrors.IsConfig(err) {
			t.Errorf("ParseMode(%q): got %v, want config error", in, err)
		}
	}
}

func TestZeroize(t *testing.T) {
	_, sk, err := hybridsig.GenerateKeyPair(hybridsig.HybridMode(registry.LatticeDSA))
	if err != nil {
		t.Fatal(err)
	}
	c, pq := sk.Classical, sk.PQ.Bytes
	sk.Zeroize()
	if !crypto.IsZero(c) || !crypto.IsZero(pq) {
		t.Error("signing key not erased")
	}
}

func FuzzParseSignature(f *testing.F) {
	_, sk, err := hybridsig.GenerateKeyPair(hybridsig.LegacyMode())
	if err != nil {
		f.Fatal(err)
	}
	sig, _ := hybridsig.Sign([]byte("seed"), sk, hybridsig.LegacyMode())
	seed, _ := sig.MarshalBinary()
	f.Add(seed)
	f.Fuzz(func(t *testing.T, data []byte) {
		sig, err := hybridsig.ParseSignature(data)
		if err != nil {
			return
		}
		if hybridsig.Verify([]byte("seed"), sig, &hybridsig.PublicKey{}, hybridsig.LegacyMode()) {
			t.Fatal("verified against an empty key")
		}
	})
}
