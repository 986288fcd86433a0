// Package hybridkem implements the hybrid key encapsulation engine.
//
// A Mode decides which components take part: X25519 for the classical half
// and one registry family for the post-quantum half.
//
// Encapsulation:
//
//	ss_c, ct_c ← X25519 ephemeral-static DH    (Legacy, Hybrid)
//	ss_q, ct_q ← PQ.Encaps(pk_q)               (Hybrid, QuantumSafe)
//	ss = ss_c || ss_q
//
// Decapsulation recomputes each half and concatenates in the same order.
// The concatenation is raw key material; it only becomes a key after the
// envelope's KDF, which also binds Transcript(pk, ct) so that neither
// ciphertext can be substituted. The halves are never mixed here.
//
// Keys and ciphertexts must match their mode exactly. A Legacy key never
// carries post-quantum material, a QuantumSafe key never carries classical
// material, and a Hybrid key always carries both.
package hybridkem

import (
	"bytes"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/registry"
)

// Component is a tagged post-quantum value.
type Component struct {
	Family registry.KEMFamily
	Bytes  []byte
}

// PublicKey is a hybrid encapsulation key.
type PublicKey struct {
	Classical []byte     // X25519 public key, nil in QuantumSafe
	PQ        *Component // nil in Legacy
}

// SecretKey is a hybrid decapsulation key. It keeps its public key, which
// the transcript needs.
type SecretKey struct {
	Classical []byte
	PQ        *Component
	Public    *PublicKey
}

// Ciphertext is a hybrid ciphertext.
type Ciphertext struct {
	Classical []byte // X25519 ephemeral public key
	PQ        *Component
}

// GenerateKeyPair generates a key pair for mode. The classical and
// post-quantum halves are generated independently, each from fresh
// randomness, and each passes a pairwise consistency test when enabled.
func GenerateKeyPair(mode Mode) (*PublicKey, *SecretKey, error) {
	if err := mode.Validate(); err != nil {
		return nil, nil, err
	}

	pk := &PublicKey{}
	sk := &SecretKey{Public: pk}

	if mode.HasClassical() {
		pub, priv, err := crypto.GenerateKEMKeyPairWithCST(registry.ClassicalKEMScheme())
		if err != nil {
			return nil, nil, qerrors.NewCryptoError("hybridkem.GenerateKeyPair", qerrors.ErrKeyGenerationFailed)
		}
		pk.Classical, sk.Classical = pub, priv
	}

	if mode.HasPostQuantum() {
		k, err := registry.KEMScheme(mode.Family)
		if err != nil {
			sk.Zeroize()
			return nil, nil, err
		}
		pub, priv, err := crypto.GenerateKEMKeyPairWithCST(k)
		if err != nil {
			sk.Zeroize()
			return nil, nil, qerrors.NewCryptoError("hybridkem.GenerateKeyPair", qerrors.ErrKeyGenerationFailed)
		}
		pk.PQ = &Component{Family: mode.Family, Bytes: pub}
		sk.PQ = &Component{Family: mode.Family, Bytes: priv}
	}

	return pk, sk, nil
}

// Encapsulate produces a ciphertext for pk and the raw shared secret
// classical || post-quantum.
func Encapsulate(pk *PublicKey, mode Mode) (*Ciphertext, []byte, error) {
	if err := mode.Validate(); err != nil {
		return nil, nil, err
	}
	if err := pk.Check(mode); err != nil {
		return nil, nil, err
	}

	ct := &Ciphertext{}
	ss := make([]byte, 0, sharedSecretSize(mode))

	if mode.HasClassical() {
		eph, s, err := registry.ClassicalKEMScheme().Encapsulate(pk.Classical)
		if err != nil {
			return nil, nil, qerrors.NewCryptoError("hybridkem.Encapsulate", qerrors.ErrEncapsulationFailed)
		}
		ct.Classical = eph
		ss = append(ss, s...)
		crypto.Zeroize(s)
	}

	if mode.HasPostQuantum() {
		k, err := registry.KEMScheme(mode.Family)
		if err != nil {
			crypto.Zeroize(ss)
			return nil, nil, err
		}
		c, s, err := k.Encapsulate(pk.PQ.Bytes)
		if err != nil {
			crypto.Zeroize(ss)
			return nil, nil, qerrors.NewCryptoError("hybridkem.Encapsulate", qerrors.ErrEncapsulationFailed)
		}
		ct.PQ = &Component{Family: mode.Family, Bytes: c}
		ss = append(ss, s...)
		crypto.Zeroize(s)
	}

	return ct, ss, nil
}

// Decapsulate recovers the shared secret of ct with sk.
//
// A key or ciphertext whose components do not match mode is a configuration
// error (ErrModeMismatch). Every failure past that point is reported as the
// single ErrDecapsulationFailed, and both halves are always computed so the
// failing step is not observable.
func Decapsulate(ct *Ciphertext, sk *SecretKey, mode Mode) ([]byte, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if err := sk.Check(mode); err != nil {
		return nil, err
	}
	if err := ct.Check(mode); err != nil {
		return nil, err
	}

	var (
		classical, pq []byte
		failed        bool
	)

	if mode.HasClassical() {
		s, err := registry.ClassicalKEMScheme().Decapsulate(sk.Classical, ct.Classical)
		failed = failed || err != nil
		classical = s
	}
	if mode.HasPostQuantum() {
		k, err := registry.KEMScheme(mode.Family)
		if err != nil {
			crypto.Zeroize(classical)
			return nil, err
		}
		s, err := k.Decapsulate(sk.PQ.Bytes, ct.PQ.Bytes)
		failed = failed || err != nil
		pq = s
	}

	defer crypto.ZeroizeMultiple(classical, pq)
	if failed {
		return nil, qerrors.NewCryptoError("hybridkem.Decapsulate", qerrors.ErrDecapsulationFailed)
	}

	ss := make([]byte, 0, len(classical)+len(pq))
	ss = append(ss, classical...)
	return append(ss, pq...), nil
}

// Transcript hashes both public keys and both ciphertexts under the
// transcript domain separator. Absent components hash as empty strings;
// the post-quantum family tag is included.
func Transcript(pk *PublicKey, ct *Ciphertext) []byte {
	var pkFam, pkPQ, ctFam, ctPQ []byte
	if pk != nil && pk.PQ != nil {
		pkFam, pkPQ = []byte{byte(pk.PQ.Family)}, pk.PQ.Bytes
	}
	if ct != nil && ct.PQ != nil {
		ctFam, ctPQ = []byte{byte(ct.PQ.Family)}, ct.PQ.Bytes
	}
	var pkC, ctC []byte
	if pk != nil {
		pkC = pk.Classical
	}
	if ct != nil {
		ctC = ct.Classical
	}
	return crypto.TranscriptHash(constants.DomainSeparatorTranscript, pkC, pkFam, pkPQ, ctC, ctFam, ctPQ)
}

// Check verifies that the key carries exactly the components of mode,
// with the right family and lengths.
func (pk *PublicKey) Check(mode Mode) error {
	if pk == nil {
		return mismatch(mode)
	}
	if err := checkComponents(mode, pk.Classical, pk.PQ); err != nil {
		return err
	}
	if mode.HasClassical() && len(pk.Classical) != constants.X25519PublicKeySize {
		return qerrors.ErrInvalidPublicKey
	}
	if mode.HasPostQuantum() {
		return registry.ValidateKEMPublicKey(mode.Family, pk.PQ.Bytes)
	}
	return nil
}

// Check verifies that the key carries exactly the components of mode.
func (sk *SecretKey) Check(mode Mode) error {
	if sk == nil {
		return mismatch(mode)
	}
	if err := checkComponents(mode, sk.Classical, sk.PQ); err != nil {
		return err
	}
	if mode.HasClassical() && len(sk.Classical) != constants.X25519PrivateKeySize {
		return qerrors.ErrInvalidPrivateKey
	}
	if mode.HasPostQuantum() {
		return registry.ValidateKEMSecretKey(mode.Family, sk.PQ.Bytes)
	}
	return nil
}

// Check verifies that the ciphertext carries exactly the components of mode.
// Length errors are reported as decapsulation failures.
func (ct *Ciphertext) Check(mode Mode) error {
	if ct == nil {
		return mismatch(mode)
	}
	if err := checkComponents(mode, ct.Classical, ct.PQ); err != nil {
		return err
	}
	if mode.HasClassical() && len(ct.Classical) != constants.X25519PublicKeySize {
		return qerrors.NewCryptoError("hybridkem.Decapsulate", qerrors.ErrDecapsulationFailed)
	}
	if mode.HasPostQuantum() && registry.ValidateKEMCiphertext(mode.Family, ct.PQ.Bytes) != nil {
		return qerrors.NewCryptoError("hybridkem.Decapsulate", qerrors.ErrDecapsulationFailed)
	}
	return nil
}

// Mode infers the mode from the components a key carries.
func (pk *PublicKey) Mode() (Mode, error) {
	return inferMode(pk.Classical, pk.PQ)
}

// Mode infers the mode from the components a key carries.
func (sk *SecretKey) Mode() (Mode, error) {
	return inferMode(sk.Classical, sk.PQ)
}

// Equal reports whether two public keys are identical.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	if !bytes.Equal(pk.Classical, other.Classical) {
		return false
	}
	if (pk.PQ == nil) != (other.PQ == nil) {
		return false
	}
	return pk.PQ == nil || (pk.PQ.Family == other.PQ.Family && bytes.Equal(pk.PQ.Bytes, other.PQ.Bytes))
}

// Zeroize erases the secret key material. The key is unusable afterwards.
func (sk *SecretKey) Zeroize() {
	if sk == nil {
		return
	}
	crypto.Zeroize(sk.Classical)
	sk.Classical = nil
	if sk.PQ != nil {
		crypto.Zeroize(sk.PQ.Bytes)
		sk.PQ = nil
	}
}

func checkComponents(mode Mode, classical []byte, pq *Component) error {
	if mode.HasClassical() != (classical != nil) || mode.HasPostQuantum() != (pq != nil) {
		return mismatch(mode)
	}
	if pq != nil && pq.Family != mode.Family {
		return mismatch(mode)
	}
	return nil
}

func inferMode(classical []byte, pq *Component) (Mode, error) {
	switch {
	case classical != nil && pq == nil:
		return LegacyMode(), nil
	case classical != nil && pq != nil:
		return HybridMode(pq.Family), nil
	case pq != nil:
		return QuantumSafeMode(pq.Family), nil
	}
	return Mode{}, qerrors.ErrModeMismatch
}

func mismatch(mode Mode) error {
	return qerrors.NewConfigError("kem_mode", mode.String(), qerrors.ErrModeMismatch)
}

func sharedSecretSize(mode Mode) int {
	n := 0
	if mode.HasClassical() {
		n += constants.X25519SharedSecretSize
	}
	if mode.HasPostQuantum() {
		if d, err := registry.KEM(mode.Family); err == nil {
			n += d.SharedSecretSize
		}
	}
	return n
}
