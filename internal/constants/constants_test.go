package constants

import (
	"strings"
	"testing"
)

// TestCipherSuiteString tests String method for CipherSuite.
func TestCipherSuiteString(t *testing.T) {
	tests := []struct {
		suite CipherSuite
		want  string
	}{
		{CipherSuiteAES256GCM, "AES-256-GCM"},
		{CipherSuiteChaCha20Poly1305, "ChaCha20-Poly1305"},
		{CipherSuiteXChaCha20Poly1305, "XChaCha20-Poly1305"},
		{CipherSuite(0x9999), "Unknown"},
	}

	for _, tt := range tests {
		got := tt.suite.String()
		if got != tt.want {
			t.Errorf("CipherSuite(%d).String() = %q, want %q", tt.suite, got, tt.want)
		}
	}
}

// TestCipherSuiteIsSupported tests IsSupported method for CipherSuite.
func TestCipherSuiteIsSupported(t *testing.T) {
	tests := []struct {
		suite CipherSuite
		want  bool
	}{
		{CipherSuiteAES256GCM, true},
		{CipherSuiteChaCha20Poly1305, true},
		{CipherSuiteXChaCha20Poly1305, true},
		{CipherSuite(0x0000), false},
		{CipherSuite(0xFFFF), false},
		{CipherSuite(0x0004), false},
	}

	for _, tt := range tests {
		got := tt.suite.IsSupported()
		if got != tt.want {
			t.Errorf("CipherSuite(%d).IsSupported() = %v, want %v", tt.suite, got, tt.want)
		}
	}
}

func TestCipherSuiteNonceSize(t *testing.T) {
	tests := []struct {
		suite CipherSuite
		want  int
	}{
		{CipherSuiteAES256GCM, 12},
		{CipherSuiteChaCha20Poly1305, 12},
		{CipherSuiteXChaCha20Poly1305, 24},
		{CipherSuite(0), 0},
	}
	for _, tt := range tests {
		if got := tt.suite.NonceSize(); got != tt.want {
			t.Errorf("%v.NonceSize() = %d, want %d", tt.suite, got, tt.want)
		}
	}
}

func TestParseCipherSuite(t *testing.T) {
	for _, cs := range []CipherSuite{CipherSuiteAES256GCM, CipherSuiteChaCha20Poly1305, CipherSuiteXChaCha20Poly1305} {
		got, ok := ParseCipherSuite(cs.String())
		if !ok || got != cs {
			t.Errorf("ParseCipherSuite(%q) = %v, %v", cs.String(), got, ok)
		}
	}
	if _, ok := ParseCipherSuite("ROT13"); ok {
		t.Error("ParseCipherSuite should reject unknown names")
	}
}

// TestOnlyAESIsFIPSApproved checks the FIPS allow-list.
func TestOnlyAESIsFIPSApproved(t *testing.T) {
	if !CipherSuiteAES256GCM.IsFIPSApproved() {
		t.Error("AES-256-GCM should be FIPS approved")
	}
	if CipherSuiteXChaCha20Poly1305.IsFIPSApproved() || CipherSuiteChaCha20Poly1305.IsFIPSApproved() {
		t.Error("ChaCha20 variants are not FIPS approved")
	}
}

// TestLabelsAreVersioned ensures every derivation label carries the format version.
func TestLabelsAreVersioned(t *testing.T) {
	labels := []string{
		LabelLedgerEnvelope,
		LabelSessionKey,
		LabelStream,
		LabelKeyFile,
		DomainSeparatorTranscript,
		DomainSeparatorEntryAAD,
	}
	seen := make(map[string]bool)
	for _, l := range labels {
		if !strings.Contains(l, "/v1/") {
			t.Errorf("label %q is not versioned", l)
		}
		if seen[l] {
			t.Errorf("label %q is duplicated", l)
		}
		seen[l] = true
	}
}

func TestSizeLimits(t *testing.T) {
	if MaxRecordSize <= MaxPayloadSize {
		t.Error("MaxRecordSize must leave room for headers beyond MaxPayloadSize")
	}
	if StreamChunkSize <= 0 || StreamChunkSize > MaxPayloadSize {
		t.Errorf("StreamChunkSize = %d out of range", StreamChunkSize)
	}
	if SymmetricKeySize != KDFOutputSize {
		t.Error("derived keys must fit the AEAD key size")
	}
}
