// Package registry is the static catalog of algorithm families.
//
// Every KEM and signature family the module knows about is listed here with
// its parameter-set sizes, whether this build can run it, and whether it is a
// research placeholder. The hybrid engines resolve families through the
// registry and never fall back to another family: selecting something the
// build cannot run is an ErrUnsupportedFamily configuration error.
//
// The catalog is built once at package init and is read-only afterwards, so
// every function here is safe for concurrent use.
package registry

import (
	"fmt"
	"slices"
	"strings"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
)

// KEMFamily identifies a post-quantum key encapsulation family.
type KEMFamily uint8

const (
	// Lattice is ML-KEM-1024 (FIPS 203).
	Lattice KEMFamily = 1
	// HQC is HQC-256, the code-based backup selected by NIST (liboqs).
	HQC KEMFamily = 2
	// McEliece is Classic McEliece 348864, for archival keys.
	McEliece KEMFamily = 3
	// NTRU is an NTRU-class research placeholder with no backend.
	NTRU KEMFamily = 4
	// BIKE is a research placeholder with no backend.
	BIKE KEMFamily = 5
)

// SignatureFamily identifies a post-quantum signature family.
type SignatureFamily uint8

const (
	// LatticeDSA is ML-DSA-87 (FIPS 204).
	LatticeDSA SignatureFamily = 1
	// HashDSA is SLH-DSA-SHAKE-256f (FIPS 205).
	HashDSA SignatureFamily = 2
	// CompactLatticeDSA is Falcon-padded-1024 (liboqs).
	CompactLatticeDSA SignatureFamily = 3
)

var kemFamilyNames = map[KEMFamily]string{
	Lattice:  "lattice",
	HQC:      "hqc",
	McEliece: "mceliece",
	NTRU:     "ntru",
	BIKE:     "bike",
}

var sigFamilyNames = map[SignatureFamily]string{
	LatticeDSA:        "lattice-dsa",
	HashDSA:           "hash-dsa",
	CompactLatticeDSA: "compact-lattice-dsa",
}

// String returns the lower-case family name used in configuration.
func (f KEMFamily) String() string {
	if name, ok := kemFamilyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("kem-family(%d)", uint8(f))
}

// String returns the lower-case family name used in configuration.
func (f SignatureFamily) String() string {
	if name, ok := sigFamilyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("sig-family(%d)", uint8(f))
}

// KEMDescriptor describes one KEM family.
type KEMDescriptor struct {
	Family           KEMFamily
	Name             string // parameter set, e.g. "ML-KEM-1024"
	Standard         string
	SecurityCategory int
	PublicKeySize    int
	SecretKeySize    int
	CiphertextSize   int
	SharedSecretSize int
	Supported        bool
	Research         bool

	scheme crypto.KEM
}

// SignatureDescriptor describes one signature family.
type SignatureDescriptor struct {
	Family           SignatureFamily
	Name             string
	Standard         string
	SecurityCategory int
	PublicKeySize    int
	SecretKeySize    int
	SignatureSize    int
	Supported        bool
	Research         bool

	scheme crypto.Signer
}

var (
	kems       = make(map[KEMFamily]KEMDescriptor)
	signatures = make(map[SignatureFamily]SignatureDescriptor)

	classicalKEM    KEMDescriptor
	classicalSigner SignatureDescriptor
)

func init() {
	registerKEM(Lattice, "FIPS 203", 5, crypto.MLKEM1024(), nil)
	mceliece, err := crypto.McEliece348864()
	registerKEM(McEliece, "Classic McEliece (NIST round 4)", 1, mceliece, err)
	hqc, err := crypto.HQC256()
	registerKEM(HQC, "HQC (NIST selection 2025)", 5, hqc, err)

	kems[NTRU] = KEMDescriptor{Family: NTRU, Name: "NTRU-HPS", Standard: "research", Research: true}
	kems[BIKE] = KEMDescriptor{Family: BIKE, Name: "BIKE-L5", Standard: "research", Research: true}

	registerSigner(LatticeDSA, "FIPS 204", 5, crypto.MLDSA87(), nil)
	registerSigner(HashDSA, "FIPS 205", 5, crypto.SLHDSA256f(), nil)
	falcon, err := crypto.Falcon1024()
	registerSigner(CompactLatticeDSA, "FN-DSA (draft FIPS 206)", 5, falcon, err)

	x := crypto.X25519KEM()
	classicalKEM = KEMDescriptor{
		Name:             x.Name(),
		Standard:         "RFC 7748",
		PublicKeySize:    x.PublicKeySize(),
		SecretKeySize:    x.PrivateKeySize(),
		CiphertextSize:   x.CiphertextSize(),
		SharedSecretSize: x.SharedSecretSize(),
		Supported:        true,
		scheme:           x,
	}
	ed := crypto.Ed25519()
	classicalSigner = SignatureDescriptor{
		Name:          ed.Name(),
		Standard:      "RFC 8032",
		PublicKeySize: ed.PublicKeySize(),
		SecretKeySize: ed.PrivateKeySize(),
		SignatureSize: ed.SignatureSize(),
		Supported:     true,
		scheme:        ed,
	}
}

// registerKEM records a family. A scheme that failed to load is still
// listed, as unsupported, under its published sizes.
func registerKEM(f KEMFamily, standard string, category int, k crypto.KEM, loadErr error) {
	d := KEMDescriptor{Family: f, Standard: standard, SecurityCategory: category}
	if loadErr != nil || k == nil {
		d.Name, d.PublicKeySize, d.SecretKeySize, d.CiphertextSize, d.SharedSecretSize = publishedKEMSizes(f)
		kems[f] = d
		return
	}
	d.Name = k.Name()
	d.PublicKeySize = k.PublicKeySize()
	d.SecretKeySize = k.PrivateKeySize()
	d.CiphertextSize = k.CiphertextSize()
	d.SharedSecretSize = k.SharedSecretSize()
	d.Supported = true
	d.scheme = k
	kems[f] = d
}

func registerSigner(f SignatureFamily, standard string, category int, s crypto.Signer, loadErr error) {
	d := SignatureDescriptor{Family: f, Standard: standard, SecurityCategory: category}
	if loadErr != nil || s == nil {
		d.Name, d.PublicKeySize, d.SecretKeySize, d.SignatureSize = publishedSignatureSizes(f)
		signatures[f] = d
		return
	}
	d.Name = s.Name()
	d.PublicKeySize = s.PublicKeySize()
	d.SecretKeySize = s.PrivateKeySize()
	d.SignatureSize = s.SignatureSize()
	d.Supported = true
	d.scheme = s
	signatures[f] = d
}

// KEM returns the descriptor of a KEM family. Unsupported families are
// returned with Supported=false and no error.
func KEM(f KEMFamily) (KEMDescriptor, error) {
	d, ok := kems[f]
	if !ok {
		return KEMDescriptor{}, qerrors.NewConfigError("kem_family", f.String(), qerrors.ErrUnknownFamily)
	}
	return d, nil
}

// Signature returns the descriptor of a signature family.
func Signature(f SignatureFamily) (SignatureDescriptor, error) {
	d, ok := signatures[f]
	if !ok {
		return SignatureDescriptor{}, qerrors.NewConfigError("sig_family", f.String(), qerrors.ErrUnknownFamily)
	}
	return d, nil
}

// KEMScheme resolves a family to its runnable scheme.
func KEMScheme(f KEMFamily) (crypto.KEM, error) {
	d, err := KEM(f)
	if err != nil {
		return nil, err
	}
	if !d.Supported {
		return nil, qerrors.NewConfigError("kem_family", f.String(), qerrors.ErrUnsupportedFamily)
	}
	return d.scheme, nil
}

// Signer resolves a family to its runnable scheme.
func Signer(f SignatureFamily) (crypto.Signer, error) {
	d, err := Signature(f)
	if err != nil {
		return nil, err
	}
	if !d.Supported {
		return nil, qerrors.NewConfigError("sig_family", f.String(), qerrors.ErrUnsupportedFamily)
	}
	return d.scheme, nil
}

// ClassicalKEM returns the X25519 descriptor used by Legacy and Hybrid modes.
func ClassicalKEM() KEMDescriptor { return classicalKEM }

// ClassicalSignature returns the Ed25519 descriptor.
func ClassicalSignature() SignatureDescriptor { return classicalSigner }

// ClassicalKEMScheme returns the X25519 scheme.
func ClassicalKEMScheme() crypto.KEM { return classicalKEM.scheme }

// ClassicalSigner returns the Ed25519 scheme.
func ClassicalSigner() crypto.Signer { return classicalSigner.scheme }

// KEMs lists every registered KEM family, ordered by tag.
func KEMs() []KEMDescriptor {
	out := make([]KEMDescriptor, 0, len(kems))
	for _, d := range kems {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b KEMDescriptor) int { return int(a.Family) - int(b.Family) })
	return out
}

// Signatures lists every registered signature family, ordered by tag.
func Signatures() []SignatureDescriptor {
	out := make([]SignatureDescriptor, 0, len(signatures))
	for _, d := range signatures {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b SignatureDescriptor) int { return int(a.Family) - int(b.Family) })
	return out
}

// ParseKEMFamily maps a configuration name (case-insensitive) to a family.
func ParseKEMFamily(name string) (KEMFamily, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range kemFamilyNames {
		if n == name {
			return f, nil
		}
	}
	return 0, qerrors.NewConfigError("kem_family", name, qerrors.ErrUnknownFamily)
}

// ParseSignatureFamily maps a configuration name (case-insensitive) to a family.
func ParseSignatureFamily(name string) (SignatureFamily, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range sigFamilyNames {
		if n == name {
			return f, nil
		}
	}
	return 0, qerrors.NewConfigError("sig_family", name, qerrors.ErrUnknownFamily)
}
