//go:build fips

// This file is compiled when the "fips" build tag is specified.
// In FIPS mode only FIPS 140-3 approved suites (AES-256-GCM) are available
// and the conditional self-tests are on by default.
package crypto

import "github.com/pzverkov/quantum-agility/internal/constants"

// FIPSMode reports whether the binary was built in FIPS mode.
func FIPSMode() bool { return true }

// DefaultCipherSuite is the suite used when the caller does not choose one.
func DefaultCipherSuite() constants.CipherSuite {
	return constants.CipherSuiteAES256GCM
}
