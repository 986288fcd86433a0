// Package hybridsig implements hybrid detached signatures.
//
// In Hybrid mode an Ed25519 signature and a post-quantum signature are
// produced over the same raw message. They are independent witnesses: the
// post-quantum signature does not cover the classical one, so forging
// either gives no help with the other.
//
// Verification is an AND: every component the mode requires must be present
// and valid, and no component the mode excludes may be present. A Pure
// signature that arrives with an Ed25519 part attached is rejected outright
// rather than checked on its post-quantum half alone.
package hybridsig

import (
	"bytes"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/registry"
)

// Component is a tagged post-quantum value.
type Component struct {
	Family registry.SignatureFamily
	Bytes  []byte
}

// PublicKey is a hybrid verification key.
type PublicKey struct {
	Classical []byte // Ed25519 public key, nil in Pure
	PQ        *Component
}

// SecretKey is a hybrid signing key.
type SecretKey struct {
	Classical []byte
	PQ        *Component
	Public    *PublicKey
}

// Signature is a hybrid detached signature.
type Signature struct {
	Classical []byte
	PQ        *Component
}

// GenerateKeyPair generates independent key pairs for each component of mode.
func GenerateKeyPair(mode Mode) (*PublicKey, *SecretKey, error) {
	if err := mode.Validate(); err != nil {
		return nil, nil, err
	}

	pk := &PublicKey{}
	sk := &SecretKey{Public: pk}

	if mode.HasClassical() {
		pub, priv, err := crypto.GenerateSignerKeyWithCST(registry.ClassicalSigner())
		if err != nil {
			return nil, nil, qerrors.NewCryptoError("hybridsig.GenerateKeyPair", qerrors.ErrKeyGenerationFailed)
		}
		pk.Classical, sk.Classical = pub, priv
	}

	if mode.HasPostQuantum() {
		s, err := registry.Signer(mode.Family)
		if err != nil {
			sk.Zeroize()
			return nil, nil, err
		}
		pub, priv, err := crypto.GenerateSignerKeyWithCST(s)
		if err != nil {
			sk.Zeroize()
			return nil, nil, qerrors.NewCryptoError("hybridsig.GenerateKeyPair", qerrors.ErrKeyGenerationFailed)
		}
		pk.PQ = &Component{Family: mode.Family, Bytes: pub}
		sk.PQ = &Component{Family: mode.Family, Bytes: priv}
	}

	return pk, sk, nil
}

// Sign produces a detached signature over message.
func Sign(message []byte, sk *SecretKey, mode Mode) (*Signature, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if err := sk.Check(mode); err != nil {
		return nil, err
	}

	sig := &Signature{}
	if mode.HasClassical() {
		s, err := registry.ClassicalSigner().Sign(sk.Classical, message)
		if err != nil {
			return nil, qerrors.NewCryptoError("hybridsig.Sign", qerrors.ErrSigningFailed)
		}
		sig.Classical = s
	}
	if mode.HasPostQuantum() {
		signer, err := registry.Signer(mode.Family)
		if err != nil {
			return nil, err
		}
		s, err := signer.Sign(sk.PQ.Bytes, message)
		if err != nil {
			return nil, qerrors.NewCryptoError("hybridsig.Sign", qerrors.ErrSigningFailed)
		}
		sig.PQ = &Component{Family: mode.Family, Bytes: s}
	}
	return sig, nil
}

// Verify reports whether sig is a valid signature of message under pk for
// mode. Every required component must verify.
func Verify(message []byte, sig *Signature, pk *PublicKey, mode Mode) bool {
	return VerifyErr(message, sig, pk, mode) == nil
}

// VerifyErr is Verify returning ErrSignatureInvalid on any failure. The
// error never says which component failed.
func VerifyErr(message []byte, sig *Signature, pk *PublicKey, mode Mode) error {
	invalid := qerrors.NewCryptoError("hybridsig.Verify", qerrors.ErrSignatureInvalid)

	if mode.Validate() != nil || pk.Check(mode) != nil || sig.Check(mode) != nil {
		return invalid
	}

	ok := true
	if mode.HasClassical() {
		ok = registry.ClassicalSigner().Verify(pk.Classical, message, sig.Classical) && ok
	}
	if mode.HasPostQuantum() {
		s, err := registry.Signer(mode.Family)
		if err != nil {
			return invalid
		}
		ok = s.Verify(pk.PQ.Bytes, message, sig.PQ.Bytes) && ok
	}
	if !ok {
		return invalid
	}
	return nil
}

// Check verifies the key carries exactly the components of mode.
func (pk *PublicKey) Check(mode Mode) error {
	if pk == nil {
		return mismatch(mode)
	}
	if err := checkComponents(mode, pk.Classical, pk.PQ); err != nil {
		return err
	}
	if mode.HasClassical() && len(pk.Classical) != constants.Ed25519PublicKeySize {
		return qerrors.ErrInvalidPublicKey
	}
	if mode.HasPostQuantum() {
		return registry.ValidateSignaturePublicKey(mode.Family, pk.PQ.Bytes)
	}
	return nil
}

// Check verifies the key carries exactly the components of mode.
func (sk *SecretKey) Check(mode Mode) error {
	if sk == nil {
		return mismatch(mode)
	}
	if err := checkComponents(mode, sk.Classical, sk.PQ); err != nil {
		return err
	}
	if mode.HasClassical() && len(sk.Classical) != constants.Ed25519PrivateKeySize {
		return qerrors.ErrInvalidPrivateKey
	}
	if mode.HasPostQuantum() {
		return registry.ValidateSignatureSecretKey(mode.Family, sk.PQ.Bytes)
	}
	return nil
}

// Check verifies the signature carries exactly the components of mode.
// A Pure signature with a classical part, or a Legacy signature with a
// post-quantum part, is a mismatch.
func (sig *Signature) Check(mode Mode) error {
	if sig == nil {
		return mismatch(mode)
	}
	if err := checkComponents(mode, sig.Classical, sig.PQ); err != nil {
		return err
	}
	if mode.HasClassical() && len(sig.Classical) != constants.Ed25519SignatureSize {
		return qerrors.ErrSignatureInvalid
	}
	if mode.HasPostQuantum() {
		return registry.ValidateSignature(mode.Family, sig.PQ.Bytes)
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
	if !bytes.Equal(pk.Classical, other.Classical) || (pk.PQ == nil) != (other.PQ == nil) {
		return false
	}
	return pk.PQ == nil || (pk.PQ.Family == other.PQ.Family && bytes.Equal(pk.PQ.Bytes, other.PQ.Bytes))
}

// Zeroize erases the signing key material.
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
		return PureMode(pq.Family), nil
	}
	return Mode{}, qerrors.ErrModeMismatch
}

func mismatch(mode Mode) error {
	return qerrors.NewConfigError("sig_mode", mode.String(), qerrors.ErrModeMismatch)
}
