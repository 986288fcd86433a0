package crypto_test

import (
	"errors"
	"testing"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
)

// TestFIPSModeConsistency verifies that FIPSMode returns the same value on multiple calls.
func TestFIPSModeConsistency(t *testing.T) {
	first := crypto.FIPSMode()
	for i := 0; i < 100; i++ {
		if crypto.FIPSMode() != first {
			t.Fatal("FIPSMode() returned inconsistent values")
		}
	}
}

// TestDefaultCipherSuite verifies the default suite is allowed in this build.
func TestDefaultCipherSuite(t *testing.T) {
	suite := crypto.DefaultCipherSuite()
	if !suite.IsSupported() {
		t.Fatalf("default suite %v is not supported", suite)
	}
	if crypto.FIPSMode() && !suite.IsFIPSApproved() {
		t.Errorf("FIPS build defaults to non-approved suite %v", suite)
	}
	if !crypto.FIPSMode() && suite != constants.CipherSuiteXChaCha20Poly1305 {
		t.Errorf("standard build default = %v, want XChaCha20-Poly1305", suite)
	}
}

// TestFIPSRejectsChaCha verifies non-approved suites are refused in FIPS builds.
func TestFIPSRejectsChaCha(t *testing.T) {
	if !crypto.FIPSMode() {
		t.Skip("only meaningful with -tags fips")
	}
	_, err := crypto.NewAEAD(constants.CipherSuiteXChaCha20Poly1305, make([]byte, 32))
	if !errors.Is(err, qerrors.ErrUnsupportedCipherSuite) {
		t.Errorf("NewAEAD(XChaCha) in FIPS mode: got %v", err)
	}
}
