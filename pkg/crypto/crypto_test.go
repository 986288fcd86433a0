package crypto_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
)

// failingReader simulates an exhausted entropy source.
type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func withFailingReader(t *testing.T) {
	t.Helper()
	orig := crypto.Reader
	crypto.Reader = failingReader{}
	t.Cleanup(func() { crypto.Reader = orig })
}

// --- Random ---

func TestSecureRandom(t *testing.T) {
	a, err := crypto.SecureRandomBytes(32)
	if err != nil {
		t.Fatalf("SecureRandomBytes failed: %v", err)
	}
	b, err := crypto.SecureRandomBytes(32)
	if err != nil {
		t.Fatalf("SecureRandomBytes failed: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two random draws are identical")
	}
	if crypto.IsZero(a) {
		t.Error("random draw is all zeros")
	}
}

func TestSecureRandomFailsHard(t *testing.T) {
	withFailingReader(t)

	if _, err := crypto.SecureRandomBytes(16); err == nil {
		t.Fatal("expected error from failing entropy source")
	}
	var ce *qerrors.CryptoError
	if _, err := crypto.SecureRandomBytes(16); !errors.As(err, &ce) {
		t.Errorf("expected CryptoError, got %T", err)
	}

	// Post-quantum key generation and encapsulation must fail rather than
	// fall back. The classical keys come from crypto/ecdh and crypto/ed25519,
	// which draw from the runtime's own source.
	if _, _, err := crypto.MLKEM1024().GenerateKeyPair(); err == nil {
		t.Error("ML-KEM key generation succeeded without entropy")
	}
	if _, _, err := crypto.MLDSA87().GenerateKey(); err == nil {
		t.Error("ML-DSA key generation succeeded without entropy")
	}
}

func TestConstantTimeCompare(t *testing.T) {
	tests := []struct {
		a, b []byte
		want bool
	}{
		{[]byte{1, 2, 3}, []byte{1, 2, 3}, true},
		{[]byte{1, 2, 3}, []byte{1, 2, 4}, false},
		{[]byte{1, 2}, []byte{1, 2, 3}, false},
		{nil, nil, true},
	}
	for _, tt := range tests {
		if got := crypto.ConstantTimeCompare(tt.a, tt.b); got != tt.want {
			t.Errorf("ConstantTimeCompare(%x, %x) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestZeroize(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{4, 5}
	crypto.ZeroizeMultiple(a, b)
	if !crypto.IsZero(a) || !crypto.IsZero(b) {
		t.Errorf("ZeroizeMultiple left data: %x %x", a, b)
	}
}

// --- KEM adapters ---

func kemRoundTrip(t *testing.T, k crypto.KEM) {
	t.Helper()

	pk, sk, err := k.GenerateKeyPair()
	if err != nil {
		t.Fatalf("%s GenerateKeyPair failed: %v", k.Name(), err)
	}
	if len(pk) != k.PublicKeySize() || len(sk) != k.PrivateKeySize() {
		t.Fatalf("%s key sizes = (%d, %d), want (%d, %d)",
			k.Name(), len(pk), len(sk), k.PublicKeySize(), k.PrivateKeySize())
	}

	ct, ss1, err := k.Encapsulate(pk)
	if err != nil {
		t.Fatalf("%s Encapsulate failed: %v", k.Name(), err)
	}
	if len(ct) != k.CiphertextSize() || len(ss1) != k.SharedSecretSize() {
		t.Fatalf("%s output sizes = (%d, %d), want (%d, %d)",
			k.Name(), len(ct), len(ss1), k.CiphertextSize(), k.SharedSecretSize())
	}

	ss2, err := k.Decapsulate(sk, ct)
	if err != nil {
		t.Fatalf("%s Decapsulate failed: %v", k.Name(), err)
	}
	if !bytes.Equal(ss1, ss2) {
		t.Fatalf("%s shared secrets differ", k.Name())
	}

	// A second key pair must not recover the same secret.
	_, sk2, err := k.GenerateKeyPair()
	if err != nil {
		t.Fatalf("%s GenerateKeyPair failed: %v", k.Name(), err)
	}
	if ss3, err := k.Decapsulate(sk2, ct); err == nil && bytes.Equal(ss1, ss3) {
		t.Fatalf("%s decapsulated with the wrong key", k.Name())
	}
}

func TestKEMRoundTrip(t *testing.T) {
	kems := []crypto.KEM{crypto.X25519KEM(), crypto.MLKEM1024()}
	for _, k := range kems {
		t.Run(k.Name(), func(t *testing.T) {
			kemRoundTrip(t, k)
		})
	}
}

func TestKEMRejectsWrongSizes(t *testing.T) {
	k := crypto.MLKEM1024()

	if _, _, err := k.Encapsulate(make([]byte, 10)); !errors.Is(err, qerrors.ErrInvalidPublicKey) {
		t.Errorf("short public key: got %v", err)
	}
	if _, err := k.Decapsulate(make([]byte, 10), make([]byte, k.CiphertextSize())); !errors.Is(err, qerrors.ErrInvalidPrivateKey) {
		t.Errorf("short private key: got %v", err)
	}
	if _, err := k.Decapsulate(make([]byte, k.PrivateKeySize()), make([]byte, 3)); !errors.Is(err, qerrors.ErrInvalidCiphertext) {
		t.Errorf("short ciphertext: got %v", err)
	}
}

func TestX25519RejectsLowOrderPoint(t *testing.T) {
	// The all-zero point yields an all-zero shared secret, which ecdh rejects.
	if _, _, err := crypto.X25519Encapsulate(make([]byte, constants.X25519PublicKeySize)); err == nil {
		t.Error("expected error for low-order public key")
	}
}

// --- Signers ---

func signerRoundTrip(t *testing.T, s crypto.Signer) {
	t.Helper()

	pk, sk, err := s.GenerateKey()
	if err != nil {
		t.Fatalf("%s GenerateKey failed: %v", s.Name(), err)
	}
	if len(pk) != s.PublicKeySize() || len(sk) != s.PrivateKeySize() {
		t.Fatalf("%s key sizes = (%d, %d), want (%d, %d)",
			s.Name(), len(pk), len(sk), s.PublicKeySize(), s.PrivateKeySize())
	}

	msg := []byte("ledger entry digest")
	sig, err := s.Sign(sk, msg)
	if err != nil {
		t.Fatalf("%s Sign failed: %v", s.Name(), err)
	}
	if len(sig) != s.SignatureSize() {
		t.Fatalf("%s signature size = %d, want %d", s.Name(), len(sig), s.SignatureSize())
	}
	if !s.Verify(pk, msg, sig) {
		t.Fatalf("%s valid signature rejected", s.Name())
	}

	for i := 0; i < len(sig); i += len(sig)/4 + 1 {
		forged := bytes.Clone(sig)
		forged[i] ^= 0x01
		if s.Verify(pk, msg, forged) {
			t.Fatalf("%s accepted signature with bit %d flipped", s.Name(), i*8)
		}
	}
	if s.Verify(pk, []byte("other message"), sig) {
		t.Fatalf("%s accepted signature for another message", s.Name())
	}

	otherPK, _, err := s.GenerateKey()
	if err != nil {
		t.Fatalf("%s GenerateKey failed: %v", s.Name(), err)
	}
	if s.Verify(otherPK, msg, sig) {
		t.Fatalf("%s accepted signature under another key", s.Name())
	}
}

func TestSignerRoundTrip(t *testing.T) {
	signers := []crypto.Signer{crypto.Ed25519(), crypto.MLDSA87()}
	if !testing.Short() {
		signers = append(signers, crypto.SLHDSA256f())
	}
	for _, s := range signers {
		t.Run(s.Name(), func(t *testing.T) {
			signerRoundTrip(t, s)
		})
	}
}

func TestSignerVerifyMalformed(t *testing.T) {
	for _, s := range []crypto.Signer{crypto.Ed25519(), crypto.MLDSA87()} {
		if s.Verify(nil, []byte("m"), nil) {
			t.Errorf("%s verified empty inputs", s.Name())
		}
		if s.Verify(make([]byte, s.PublicKeySize()), []byte("m"), make([]byte, 3)) {
			t.Errorf("%s verified a truncated signature", s.Name())
		}
	}
}

// --- liboqs families ---

func TestOQSFamiliesMatchBuild(t *testing.T) {
	_, kemErr := crypto.HQC256()
	_, mcErr := crypto.McEliece348864()
	_, sigErr := crypto.Falcon1024()

	if crypto.OQSEnabled() {
		t.Skip("liboqs families exercised in oqs_test.go")
	}
	if !errors.Is(kemErr, qerrors.ErrUnsupportedFamily) {
		t.Errorf("HQC256() error = %v, want ErrUnsupportedFamily", kemErr)
	}
	if !errors.Is(mcErr, qerrors.ErrUnsupportedFamily) {
		t.Errorf("McEliece348864() error = %v, want ErrUnsupportedFamily", mcErr)
	}
	if !errors.Is(sigErr, qerrors.ErrUnsupportedFamily) {
		t.Errorf("Falcon1024() error = %v, want ErrUnsupportedFamily", sigErr)
	}
}

// --- KDF ---

func TestHKDFRequiresLabel(t *testing.T) {
	_, err := crypto.HKDF([]byte("secret"), nil, "", 32)
	if !errors.Is(err, qerrors.ErrMissingLabel) {
		t.Errorf("expected ErrMissingLabel, got %v", err)
	}
}

func TestHKDFRejectsBadLengths(t *testing.T) {
	for _, n := range []int{0, -1, 255*32 + 1} {
		if _, err := crypto.HKDF([]byte("secret"), nil, "label", n); err == nil {
			t.Errorf("HKDF accepted output length %d", n)
		}
	}
	if _, err := crypto.HKDF(nil, nil, "label", 32); err == nil {
		t.Error("HKDF accepted empty secret")
	}
}

func TestHKDFLabelSeparation(t *testing.T) {
	secret := bytes.Repeat([]byte{0x42}, 64)

	a, _ := crypto.HKDF(secret, nil, constants.LabelLedgerEnvelope, 32)
	b, _ := crypto.HKDF(secret, nil, constants.LabelSessionKey, 32)
	c, _ := crypto.HKDF(secret, nil, constants.LabelLedgerEnvelope, 32, []byte("ctx"))

	if bytes.Equal(a, b) || bytes.Equal(a, c) || bytes.Equal(b, c) {
		t.Error("different labels or contexts produced the same key")
	}

	// Component boundaries are part of the input.
	d, _ := crypto.HKDF(secret, nil, "ab", 32, []byte("c"))
	e, _ := crypto.HKDF(secret, nil, "a", 32, []byte("bc"))
	if bytes.Equal(d, e) {
		t.Error("length prefixing failed to separate components")
	}
}

func TestChainDigestOrderSensitive(t *testing.T) {
	ab := crypto.ChainDigest(crypto.ChainDigest(nil, []byte("a")), []byte("b"))
	ba := crypto.ChainDigest(crypto.ChainDigest(nil, []byte("b")), []byte("a"))
	if bytes.Equal(ab, ba) {
		t.Error("chain digest is order independent")
	}
	if len(ab) != constants.HashSize {
		t.Errorf("digest size = %d, want %d", len(ab), constants.HashSize)
	}
}

// --- AEAD ---

func suitesUnderTest() []constants.CipherSuite {
	if crypto.FIPSMode() {
		return []constants.CipherSuite{constants.CipherSuiteAES256GCM}
	}
	return []constants.CipherSuite{
		constants.CipherSuiteAES256GCM,
		constants.CipherSuiteChaCha20Poly1305,
		constants.CipherSuiteXChaCha20Poly1305,
	}
}

func TestAEADRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, constants.SymmetricKeySize)
	aad := []byte("header")

	for _, suite := range suitesUnderTest() {
		t.Run(suite.String(), func(t *testing.T) {
			aead, err := crypto.NewAEAD(suite, key)
			if err != nil {
				t.Fatalf("NewAEAD failed: %v", err)
			}
			if aead.NonceSize() != suite.NonceSize() {
				t.Errorf("NonceSize() = %d, want %d", aead.NonceSize(), suite.NonceSize())
			}

			for _, pt := range [][]byte{{}, []byte("hello"), bytes.Repeat([]byte{0xAB}, 150_000)} {
				sealed, err := aead.Seal(pt, aad)
				if err != nil {
					t.Fatalf("Seal failed: %v", err)
				}
				if len(sealed) != len(pt)+aead.Overhead() {
					t.Errorf("sealed length = %d, want %d", len(sealed), len(pt)+aead.Overhead())
				}
				got, err := aead.Open(sealed, aad)
				if err != nil {
					t.Fatalf("Open failed: %v", err)
				}
				if !bytes.Equal(got, pt) {
					t.Fatal("round trip mismatch")
				}

				nonce, ct, err := aead.SealRandom(pt, aad)
				if err != nil {
					t.Fatalf("SealRandom failed: %v", err)
				}
				got, err = aead.OpenWithNonce(nonce, ct, aad)
				if err != nil || !bytes.Equal(got, pt) {
					t.Fatalf("SealRandom round trip failed: %v", err)
				}
			}
		})
	}
}

func TestAEADFailsClosed(t *testing.T) {
	key := bytes.Repeat([]byte{0x22}, constants.SymmetricKeySize)

	for _, suite := range suitesUnderTest() {
		t.Run(suite.String(), func(t *testing.T) {
			aead, _ := crypto.NewAEAD(suite, key)
			sealed, _ := aead.Seal([]byte("attack at dawn"), []byte("aad"))

			tampered := bytes.Clone(sealed)
			tampered[len(tampered)-1] ^= 0x80
			if pt, err := aead.Open(tampered, []byte("aad")); !errors.Is(err, qerrors.ErrAuthenticationFailed) || pt != nil {
				t.Errorf("tampered tag: got (%q, %v)", pt, err)
			}
			if _, err := aead.Open(sealed, []byte("other")); !errors.Is(err, qerrors.ErrAuthenticationFailed) {
				t.Errorf("wrong aad: got %v", err)
			}

			otherKey := bytes.Repeat([]byte{0x23}, constants.SymmetricKeySize)
			other, _ := crypto.NewAEAD(suite, otherKey)
			if _, err := other.Open(sealed, []byte("aad")); !errors.Is(err, qerrors.ErrAuthenticationFailed) {
				t.Errorf("wrong key: got %v", err)
			}
			if _, err := aead.Open(sealed[:3], nil); !errors.Is(err, qerrors.ErrCiphertextTooShort) {
				t.Errorf("short input: got %v", err)
			}
		})
	}
}

func TestAEADCounterNonces(t *testing.T) {
	key := bytes.Repeat([]byte{0x33}, constants.SymmetricKeySize)
	aead, err := crypto.NewAEAD(crypto.DefaultCipherSuite(), key)
	if err != nil {
		t.Fatalf("NewAEAD failed: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sealed, err := aead.Seal([]byte("x"), nil)
		if err != nil {
			t.Fatalf("Seal failed: %v", err)
		}
		nonce := string(sealed[:aead.NonceSize()])
		if seen[nonce] {
			t.Fatalf("nonce reused at message %d", i)
		}
		seen[nonce] = true
	}
	if aead.Counter() != 100 {
		t.Errorf("Counter() = %d, want 100", aead.Counter())
	}
	if aead.NeedsRekey() {
		t.Error("NeedsRekey() true after 100 messages")
	}
}

func TestAEADInvalidParameters(t *testing.T) {
	if _, err := crypto.NewAEAD(constants.CipherSuiteAES256GCM, make([]byte, 16)); !errors.Is(err, qerrors.ErrInvalidKeySize) {
		t.Errorf("short key: got %v", err)
	}
	if _, err := crypto.NewAEAD(constants.CipherSuite(0x99), make([]byte, 32)); !errors.Is(err, qerrors.ErrUnsupportedCipherSuite) {
		t.Errorf("unknown suite: got %v", err)
	}

	aead, _ := crypto.NewAEAD(constants.CipherSuiteAES256GCM, make([]byte, 32))
	if _, err := aead.SealWithNonce(make([]byte, 5), nil, nil); !errors.Is(err, qerrors.ErrInvalidNonce) {
		t.Errorf("bad nonce: got %v", err)
	}
}
