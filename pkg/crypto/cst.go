// cst.go implements Conditional Self-Tests (CST) for FIPS 140-3 compliance.
//
// Conditional Self-Tests differ from Power-On Self-Tests (POST) in that they run
// during specific cryptographic operations rather than at module initialization.
// They verify that each operation produces consistent, correct results.
//
// FIPS 140-3 requires two types of conditional self-tests:
//
//  1. Pairwise Consistency Test: Verifies that a newly generated key pair is
//     consistent (the private and public keys correspond correctly).
//
//  2. DRBG Health Check: Verifies that the random number generator produces
//     non-repeating, non-zero output.
//
// In FIPS mode, CST failures cause a panic to prevent use of potentially
// compromised keys or random data. In standard mode, failures return errors.
package crypto

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
)

// CSTConfig configures Conditional Self-Test behavior
type CSTConfig struct {
	// EnablePairwiseTest enables pairwise consistency tests on key generation
	EnablePairwiseTest bool

	// EnableRNGHealthCheck enables health checks on RNG output
	EnableRNGHealthCheck bool

	// RNGHealthCheckInterval is how often to run full RNG health checks
	// (number of SecureRandom calls between checks)
	RNGHealthCheckInterval uint64
}

// DefaultCSTConfig returns the default CST configuration.
// In FIPS mode, all tests are enabled; in standard mode, tests are disabled by default.
func DefaultCSTConfig() CSTConfig {
	return CSTConfig{
		EnablePairwiseTest:     FIPSMode(),
		EnableRNGHealthCheck:   FIPSMode(),
		RNGHealthCheckInterval: 1000, // Check every 1000 RNG calls
	}
}

// cstState holds global CST state
var (
	cstConfig     CSTConfig
	cstConfigOnce sync.Once
	rngCallCount  atomic.Uint64
	lastRNGOutput []byte
	lastRNGMutex  sync.Mutex
)

// InitCST initializes Conditional Self-Tests with the given configuration.
// Must be called before any cryptographic operations if custom configuration is needed.
// If not called, default configuration is used.
func InitCST(config CSTConfig) {
	cstConfigOnce.Do(func() {
		cstConfig = config
	})
}

// getConfig returns the CST configuration, initializing with defaults if needed.
func getConfig() CSTConfig {
	cstConfigOnce.Do(func() {
		cstConfig = DefaultCSTConfig()
	})
	return cstConfig
}

// CSTResult contains the results of a Conditional Self-Test
type CSTResult struct {
	Passed bool
	Error  error
}

// --- Pairwise Consistency Tests ---

// pairwiseMessage is the message signed by the signature pairwise test.
var pairwiseMessage = []byte("pairwise-consistency")

// kemPairwise encapsulates to pk, decapsulates with sk and compares.
func kemPairwise(k KEM, pk, sk []byte) error {
	ct, ss1, err := k.Encapsulate(pk)
	if err != nil {
		return fmt.Errorf("encapsulation failed: %w", err)
	}
	defer Zeroize(ss1)

	ss2, err := k.Decapsulate(sk, ct)
	if err != nil {
		return fmt.Errorf("decapsulation failed: %w", err)
	}
	defer Zeroize(ss2)

	if len(ss1) != k.SharedSecretSize() {
		return fmt.Errorf("shared secret size mismatch: got %d, want %d", len(ss1), k.SharedSecretSize())
	}
	if !ConstantTimeCompare(ss1, ss2) {
		return fmt.Errorf("shared secrets do not match")
	}
	if IsZero(ss1) {
		return fmt.Errorf("shared secret is all zeros")
	}
	return nil
}

// signerPairwise signs with sk, verifies with pk, and checks that a modified
// message is rejected.
func signerPairwise(s Signer, pk, sk []byte) error {
	sig, err := s.Sign(sk, pairwiseMessage)
	if err != nil {
		return fmt.Errorf("sign failed: %w", err)
	}
	if !s.Verify(pk, pairwiseMessage, sig) {
		return fmt.Errorf("signature does not verify")
	}
	tampered := append([]byte{}, pairwiseMessage...)
	tampered[0] ^= 0x01
	if s.Verify(pk, tampered, sig) {
		return fmt.Errorf("signature verifies for a different message")
	}
	return nil
}

// PairwiseConsistencyTestKEM verifies that a KEM key pair is consistent.
func PairwiseConsistencyTestKEM(k KEM, pk, sk []byte) *CSTResult {
	if k == nil || len(pk) == 0 || len(sk) == 0 {
		return &CSTResult{Passed: false, Error: fmt.Errorf("invalid key pair")}
	}
	if err := kemPairwise(k, pk, sk); err != nil {
		return &CSTResult{Passed: false, Error: err}
	}
	return &CSTResult{Passed: true}
}

// PairwiseConsistencyTestSigner verifies that a signature key pair is consistent.
func PairwiseConsistencyTestSigner(s Signer, pk, sk []byte) *CSTResult {
	if s == nil || len(pk) == 0 || len(sk) == 0 {
		return &CSTResult{Passed: false, Error: fmt.Errorf("invalid key pair")}
	}
	if err := signerPairwise(s, pk, sk); err != nil {
		return &CSTResult{Passed: false, Error: err}
	}
	return &CSTResult{Passed: true}
}

// handleCSTFailure panics in FIPS mode and returns the error otherwise.
func handleCSTFailure(what string, result *CSTResult) error {
	if result.Passed {
		return nil
	}
	if FIPSMode() {
		panic(fmt.Sprintf("FIPS CST failed: %s: %v", what, result.Error))
	}
	return result.Error
}

// --- DRBG Health Check ---

// RNGHealthCheck performs a health check on the random number generator.
// It verifies that:
// 1. The RNG produces non-zero output
// 2. The RNG produces non-repeating output
// 3. The RNG produces output with reasonable entropy distribution
func RNGHealthCheck() *CSTResult {
	// Generate test samples
	sample1 := make([]byte, 32)
	sample2 := make([]byte, 32)

	if err := SecureRandom(sample1); err != nil {
		return &CSTResult{Passed: false, Error: fmt.Errorf("RNG read 1 failed: %w", err)}
	}

	if err := SecureRandom(sample2); err != nil {
		return &CSTResult{Passed: false, Error: fmt.Errorf("RNG read 2 failed: %w", err)}
	}

	// Check 1: Neither sample should be all zeros
	if IsZero(sample1) {
		return &CSTResult{Passed: false, Error: fmt.Errorf("RNG produced all-zero sample 1")}
	}
	if IsZero(sample2) {
		return &CSTResult{Passed: false, Error: fmt.Errorf("RNG produced all-zero sample 2")}
	}

	// Check 2: Samples should be different
	if bytes.Equal(sample1, sample2) {
		return &CSTResult{Passed: false, Error: fmt.Errorf("RNG produced identical consecutive samples")}
	}

	// Check 3: Neither sample should be all the same byte
	allSame1 := true
	allSame2 := true
	for i := 1; i < 32; i++ {
		if sample1[i] != sample1[0] {
			allSame1 = false
		}
		if sample2[i] != sample2[0] {
			allSame2 = false
		}
	}
	if allSame1 {
		return &CSTResult{Passed: false, Error: fmt.Errorf("RNG sample 1 has no variation")}
	}
	if allSame2 {
		return &CSTResult{Passed: false, Error: fmt.Errorf("RNG sample 2 has no variation")}
	}

	return &CSTResult{Passed: true}
}

// ContinuousRNGTest implements the continuous RNG test required by FIPS 140-3.
// It compares each RNG output to the previous output and fails if they match.
// This function should be called after each SecureRandom call in FIPS mode.
func ContinuousRNGTest(output []byte) *CSTResult {
	lastRNGMutex.Lock()
	defer lastRNGMutex.Unlock()

	// First call - just store the output
	if lastRNGOutput == nil {
		lastRNGOutput = make([]byte, len(output))
		copy(lastRNGOutput, output)
		return &CSTResult{Passed: true}
	}

	// Compare with previous output (if same length)
	if len(output) == len(lastRNGOutput) && bytes.Equal(output, lastRNGOutput) {
		return &CSTResult{Passed: false, Error: fmt.Errorf("RNG produced repeated output")}
	}

	// Store current output for next comparison
	if len(lastRNGOutput) != len(output) {
		lastRNGOutput = make([]byte, len(output))
	}
	copy(lastRNGOutput, output)

	return &CSTResult{Passed: true}
}

// runRNGHealthCheck runs periodic RNG health checks if enabled.
func runRNGHealthCheck() error {
	config := getConfig()
	if !config.EnableRNGHealthCheck {
		return nil
	}

	count := rngCallCount.Add(1)

	// Run full health check periodically
	if count%config.RNGHealthCheckInterval == 0 {
		return handleCSTFailure("RNG health check", RNGHealthCheck())
	}

	return nil
}

// --- Key Generation with CST ---

// GenerateKEMKeyPairWithCST generates a key pair and, when enabled, runs the
// pairwise consistency test before returning it.
func GenerateKEMKeyPairWithCST(k KEM) (pk, sk []byte, err error) {
	pk, sk, err = k.GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	if !getConfig().EnablePairwiseTest {
		return pk, sk, nil
	}
	if err := handleCSTFailure(k.Name()+" pairwise consistency test", PairwiseConsistencyTestKEM(k, pk, sk)); err != nil {
		Zeroize(sk)
		return nil, nil, fmt.Errorf("pairwise consistency test failed: %w", err)
	}
	return pk, sk, nil
}

// GenerateSignerKeyWithCST is the signature counterpart of
// GenerateKEMKeyPairWithCST.
func GenerateSignerKeyWithCST(s Signer) (pk, sk []byte, err error) {
	pk, sk, err = s.GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	if !getConfig().EnablePairwiseTest {
		return pk, sk, nil
	}
	if err := handleCSTFailure(s.Name()+" pairwise consistency test", PairwiseConsistencyTestSigner(s, pk, sk)); err != nil {
		Zeroize(sk)
		return nil, nil, fmt.Errorf("pairwise consistency test failed: %w", err)
	}
	return pk, sk, nil
}

// SecureRandomWithCST reads cryptographically secure random bytes and runs
// the continuous RNG test in FIPS mode.
func SecureRandomWithCST(b []byte) error {
	if err := SecureRandom(b); err != nil {
		return err
	}

	// Run continuous test in FIPS mode
	if FIPSMode() {
		result := ContinuousRNGTest(b)
		if !result.Passed {
			panic(fmt.Sprintf("FIPS CST failed: continuous RNG test: %v", result.Error))
		}
	}

	// Run periodic health check
	return runRNGHealthCheck()
}

// CSTEnabled returns true if Conditional Self-Tests are enabled.
func CSTEnabled() bool {
	config := getConfig()
	return config.EnablePairwiseTest || config.EnableRNGHealthCheck
}

// GetCSTConfig returns the current CST configuration.
func GetCSTConfig() CSTConfig {
	return getConfig()
}
