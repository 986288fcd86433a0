//go:build !oqs

// Without the "oqs" build tag the liboqs-backed families are registered but
// unavailable; selecting them fails with ErrUnsupportedFamily.
package crypto

import qerrors "github.com/pzverkov/quantum-agility/internal/errors"

// OQSEnabled reports whether the liboqs-backed families are compiled in.
func OQSEnabled() bool { return false }

// HQC256 is unavailable without the "oqs" build tag.
func HQC256() (KEM, error) {
	return nil, qerrors.ErrUnsupportedFamily
}

// McEliece348864 is unavailable without the "oqs" build tag.
func McEliece348864() (KEM, error) {
	return nil, qerrors.ErrUnsupportedFamily
}

// Falcon1024 is unavailable without the "oqs" build tag.
func Falcon1024() (Signer, error) {
	return nil, qerrors.ErrUnsupportedFamily
}
