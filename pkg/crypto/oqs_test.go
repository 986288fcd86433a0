//go:build oqs

package crypto_test

import (
	"testing"

	"github.com/pzverkov/quantum-agility/pkg/crypto"
)

func TestOQSRoundTrip(t *testing.T) {
	if !crypto.OQSEnabled() {
		t.Fatal("OQSEnabled() = false with the oqs tag")
	}

	hqc, err := crypto.HQC256()
	if err != nil {
		t.Skipf("HQC not enabled in the linked liboqs: %v", err)
	}
	kemRoundTrip(t, hqc)

	if !testing.Short() {
		mceliece, err := crypto.McEliece348864()
		if err != nil {
			t.Skipf("Classic McEliece not enabled in the linked liboqs: %v", err)
		}
		kemRoundTrip(t, mceliece)
	}

	falcon, err := crypto.Falcon1024()
	if err != nil {
		t.Skipf("Falcon not enabled in the linked liboqs: %v", err)
	}
	signerRoundTrip(t, falcon)
}
