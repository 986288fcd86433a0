package crypto_test

import (
	"bytes"
	"testing"

	"github.com/pzverkov/quantum-agility/pkg/crypto"
)

// TestDefaultCSTConfig verifies the default configuration follows FIPS mode.
func TestDefaultCSTConfig(t *testing.T) {
	config := crypto.DefaultCSTConfig()

	if config.EnablePairwiseTest != crypto.FIPSMode() {
		t.Errorf("EnablePairwiseTest = %v, want %v", config.EnablePairwiseTest, crypto.FIPSMode())
	}
	if config.EnableRNGHealthCheck != crypto.FIPSMode() {
		t.Errorf("EnableRNGHealthCheck = %v, want %v", config.EnableRNGHealthCheck, crypto.FIPSMode())
	}
	if config.RNGHealthCheckInterval == 0 {
		t.Error("RNGHealthCheckInterval should be non-zero")
	}
}

func TestPairwiseConsistencyKEM(t *testing.T) {
	for _, k := range []crypto.KEM{crypto.X25519KEM(), crypto.MLKEM1024()} {
		t.Run(k.Name(), func(t *testing.T) {
			pk, sk, err := k.GenerateKeyPair()
			if err != nil {
				t.Fatalf("GenerateKeyPair failed: %v", err)
			}
			if result := crypto.PairwiseConsistencyTestKEM(k, pk, sk); !result.Passed {
				t.Errorf("pairwise test failed: %v", result.Error)
			}

			// A secret key from another pair must fail.
			_, otherSK, _ := k.GenerateKeyPair()
			if result := crypto.PairwiseConsistencyTestKEM(k, pk, otherSK); result.Passed {
				t.Error("pairwise test passed with mismatched keys")
			}

			if result := crypto.PairwiseConsistencyTestKEM(k, nil, nil); result.Passed {
				t.Error("pairwise test passed with empty keys")
			}
		})
	}
}

func TestPairwiseConsistencySigner(t *testing.T) {
	for _, s := range []crypto.Signer{crypto.Ed25519(), crypto.MLDSA87()} {
		t.Run(s.Name(), func(t *testing.T) {
			pk, sk, err := s.GenerateKey()
			if err != nil {
				t.Fatalf("GenerateKey failed: %v", err)
			}
			if result := crypto.PairwiseConsistencyTestSigner(s, pk, sk); !result.Passed {
				t.Errorf("pairwise test failed: %v", result.Error)
			}

			otherPK, _, _ := s.GenerateKey()
			if result := crypto.PairwiseConsistencyTestSigner(s, otherPK, sk); result.Passed {
				t.Error("pairwise test passed with mismatched keys")
			}
		})
	}
}

func TestGenerateWithCST(t *testing.T) {
	pk, sk, err := crypto.GenerateKEMKeyPairWithCST(crypto.MLKEM1024())
	if err != nil {
		t.Fatalf("GenerateKEMKeyPairWithCST failed: %v", err)
	}
	if len(pk) == 0 || len(sk) == 0 {
		t.Error("empty key material")
	}

	pk, sk, err = crypto.GenerateSignerKeyWithCST(crypto.Ed25519())
	if err != nil {
		t.Fatalf("GenerateSignerKeyWithCST failed: %v", err)
	}
	if len(pk) == 0 || len(sk) == 0 {
		t.Error("empty key material")
	}
}

// TestRNGHealthCheck verifies the RNG health check passes on a working source.
func TestRNGHealthCheck(t *testing.T) {
	if result := crypto.RNGHealthCheck(); !result.Passed {
		t.Errorf("RNG health check failed: %v", result.Error)
	}
}

// TestRNGHealthCheckFailingSource verifies the check reports a dead source.
func TestRNGHealthCheckFailingSource(t *testing.T) {
	withFailingReader(t)
	if result := crypto.RNGHealthCheck(); result.Passed {
		t.Error("RNG health check passed with a failing source")
	}
}

// TestContinuousRNGTest verifies repeated output is detected.
func TestContinuousRNGTest(t *testing.T) {
	sample := make([]byte, 32)
	if err := crypto.SecureRandom(sample); err != nil {
		t.Fatalf("SecureRandom failed: %v", err)
	}

	crypto.ContinuousRNGTest(sample)
	if result := crypto.ContinuousRNGTest(bytes.Clone(sample)); result.Passed {
		t.Error("continuous RNG test should fail on repeated output")
	}

	fresh := make([]byte, 32)
	if err := crypto.SecureRandom(fresh); err != nil {
		t.Fatalf("SecureRandom failed: %v", err)
	}
	if result := crypto.ContinuousRNGTest(fresh); !result.Passed {
		t.Errorf("continuous RNG test failed on fresh output: %v", result.Error)
	}
}

// TestSecureRandomWithCST verifies the CST wrapper returns random data.
func TestSecureRandomWithCST(t *testing.T) {
	buf := make([]byte, 32)
	if err := crypto.SecureRandomWithCST(buf); err != nil {
		t.Fatalf("SecureRandomWithCST failed: %v", err)
	}
	if crypto.IsZero(buf) {
		t.Error("SecureRandomWithCST returned all zeros")
	}
}

// TestCSTEnabledMatchesConfig verifies CSTEnabled reflects the active config.
func TestCSTEnabledMatchesConfig(t *testing.T) {
	config := crypto.GetCSTConfig()
	want := config.EnablePairwiseTest || config.EnableRNGHealthCheck
	if crypto.CSTEnabled() != want {
		t.Errorf("CSTEnabled() = %v, want %v", crypto.CSTEnabled(), want)
	}
}
