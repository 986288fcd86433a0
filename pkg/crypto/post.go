// post.go implements Power-On Self-Tests (POST).
//
// POST is production code: it runs when the package is loaded and checks the
// primitives against known answers before any key is generated.
//
// The tests cover:
//   - HKDF-SHA3-256 (known answer)
//   - SHA3-256 chain digest (known answer)
//   - AES-256-GCM (known answer)
//   - XChaCha20-Poly1305 (round trip and tamper rejection)
//   - ML-KEM-1024 and ML-DSA-87 (deterministic pairwise consistency)
//
// SLH-DSA is too slow for load time; they are covered by
// the conditional pairwise tests on key generation instead. The liboqs families
// are checked the same way.
//
// In FIPS mode a POST failure panics. In standard mode the result is recorded
// and exposed through POSTPassed and the health checks.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pzverkov/quantum-agility/internal/constants"
)

// POST KAT (Known Answer Test) values
var (
	// HKDF-SHA3-256, ikm=0x0123...ef (32 bytes), nil salt, label POSTDomain
	postKATKDFInput, _    = hex.DecodeString("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	postKATKDFExpected, _ = hex.DecodeString("5ea15969821800cab134b0878631dd3d6678c6d69767aacf423bc9db2a63a754")

	// SHA3-256("" || "POST-KAT-TEST")
	postKATChainExpected, _ = hex.DecodeString("a3d87ffe15de3b6b97a408322556381837e2237ad350a5d4bcaf5f813217f9c5")

	// AES-256-GCM, zero nonce, plaintext "POST-KAT-TEST"
	postKATAESKey, _       = hex.DecodeString("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	postKATAESNonce, _     = hex.DecodeString("000000000000000000000000")
	postKATAESPlaintext, _ = hex.DecodeString("504f53542d4b41542d54455354") // "POST-KAT-TEST"
	postKATAESExpected, _  = hex.DecodeString("5a48b3005aeb1b0a8cd6767b8cded311eb6185c16343d286e3541e9d98")

	// Seed material for deterministic PQ key generation
	postKATPQSeed, _ = hex.DecodeString(
		"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef" +
			"fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210")
)

// POSTResult contains the results of Power-On Self-Tests
type POSTResult struct {
	Passed      bool
	KDFPassed   bool
	HashPassed  bool
	AEADPassed  bool
	MLKEMPassed bool
	MLDSAPassed bool
	Errors      []string
}

var (
	postResult     *POSTResult
	postResultOnce sync.Once
	postRan        bool
)

// POSTDomain is the label used in POST KDF tests
const POSTDomain = "POST-KAT-TEST"

// RunPOST executes the Power-On Self-Tests and returns the results.
// This function is safe to call multiple times; tests only run once.
func RunPOST() *POSTResult {
	postResultOnce.Do(func() {
		postResult = &POSTResult{Passed: true}

		record := func(name string, err error) bool {
			if err != nil {
				postResult.Passed = false
				postResult.Errors = append(postResult.Errors, fmt.Sprintf("%s failed: %v", name, err))
				return false
			}
			return true
		}

		postResult.KDFPassed = record("HKDF KAT", runKDFKAT())
		postResult.HashPassed = record("chain digest KAT", runChainKAT())
		aesOK := record("AES-GCM KAT", runAESGCMKAT())
		xOK := record("XChaCha20-Poly1305 self-test", runXChaChaTest())
		postResult.AEADPassed = aesOK && xOK
		postResult.MLKEMPassed = record("ML-KEM-1024 pairwise", runMLKEMTest())
		postResult.MLDSAPassed = record("ML-DSA-87 pairwise", runMLDSATest())

		postRan = true

		if FIPSMode() && !postResult.Passed {
			panic(fmt.Sprintf("FIPS POST failed: %v", postResult.Errors))
		}
	})

	return postResult
}

// POSTRan returns true if POST has been executed
func POSTRan() bool {
	return postRan
}

// POSTPassed returns true if POST has run and all tests passed
func POSTPassed() bool {
	if postResult == nil {
		return false
	}
	return postResult.Passed
}

func runKDFKAT() error {
	output, err := HKDF(postKATKDFInput, nil, POSTDomain, 32)
	if err != nil {
		return fmt.Errorf("HKDF failed: %w", err)
	}
	if !bytes.Equal(output, postKATKDFExpected) {
		return fmt.Errorf("KDF output mismatch: got %x, want %x", output, postKATKDFExpected)
	}
	return nil
}

func runChainKAT() error {
	output := ChainDigest(nil, []byte(POSTDomain))
	if !bytes.Equal(output, postKATChainExpected) {
		return fmt.Errorf("chain digest mismatch: got %x, want %x", output, postKATChainExpected)
	}
	return nil
}

func runAESGCMKAT() error {
	block, err := aes.NewCipher(postKATAESKey)
	if err != nil {
		return fmt.Errorf("NewCipher failed: %w", err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("NewGCM failed: %w", err)
	}

	ciphertext := aesgcm.Seal(nil, postKATAESNonce, postKATAESPlaintext, nil) //nolint:gosec // G407: fixed nonce is the point of a KAT
	if !bytes.Equal(ciphertext, postKATAESExpected) {
		return fmt.Errorf("AES-GCM encrypt mismatch: got %x, want %x", ciphertext, postKATAESExpected)
	}

	plaintext, err := aesgcm.Open(nil, postKATAESNonce, ciphertext, nil) //nolint:gosec // G407: fixed nonce is the point of a KAT
	if err != nil {
		return fmt.Errorf("AES-GCM decrypt failed: %w", err)
	}
	if !bytes.Equal(plaintext, postKATAESPlaintext) {
		return fmt.Errorf("AES-GCM decrypt mismatch: got %x, want %x", plaintext, postKATAESPlaintext)
	}
	return nil
}

func runXChaChaTest() error {
	aead, err := chacha20poly1305.NewX(postKATAESKey)
	if err != nil {
		return fmt.Errorf("NewX failed: %w", err)
	}
	nonce := make([]byte, constants.XChaCha20NonceSize)

	ct := aead.Seal(nil, nonce, postKATAESPlaintext, []byte(POSTDomain))
	pt, err := aead.Open(nil, nonce, ct, []byte(POSTDomain))
	if err != nil || !bytes.Equal(pt, postKATAESPlaintext) {
		return fmt.Errorf("round trip failed")
	}

	ct[0] ^= 0x01
	if _, err := aead.Open(nil, nonce, ct, []byte(POSTDomain)); err == nil {
		return fmt.Errorf("tampered ciphertext accepted")
	}
	return nil
}

func runMLKEMTest() error {
	k := MLKEM1024().(circlKEM)
	pk, sk, err := k.deriveKeyPair(postKATPQSeed[:k.scheme.SeedSize()])
	if err != nil {
		return err
	}
	defer Zeroize(sk)

	if len(pk) != constants.MLKEMPublicKeySize {
		return fmt.Errorf("public key size mismatch: got %d, want %d", len(pk), constants.MLKEMPublicKeySize)
	}
	return kemPairwise(k, pk, sk)
}

func runMLDSATest() error {
	s := MLDSA87().(circlSigner)
	pk, sk, err := s.deriveKey(postKATPQSeed[:s.scheme.SeedSize()])
	if err != nil {
		return err
	}
	defer Zeroize(sk)

	if len(pk) != constants.MLDSAPublicKeySize {
		return fmt.Errorf("public key size mismatch: got %d, want %d", len(pk), constants.MLDSAPublicKeySize)
	}
	return signerPairwise(s, pk, sk)
}

// init runs POST automatically when the package is loaded
func init() {
	RunPOST()
}
