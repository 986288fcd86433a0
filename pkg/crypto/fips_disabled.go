//go:build !fips

// This file is compiled when the "fips" build tag is NOT specified.
// In standard mode every supported suite is available and XChaCha20-Poly1305
// is the default.
package crypto

import "github.com/pzverkov/quantum-agility/internal/constants"

// FIPSMode reports whether the binary was built in FIPS mode.
func FIPSMode() bool { return false }

// DefaultCipherSuite is the suite used when the caller does not choose one.
func DefaultCipherSuite() constants.CipherSuite {
	return constants.CipherSuiteXChaCha20Poly1305
}
