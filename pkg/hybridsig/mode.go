package hybridsig

import (
	"fmt"
	"strings"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/registry"
)

// Kind selects which signatures a mode carries.
type Kind uint8

const (
	// Legacy is Ed25519 only.
	Legacy Kind = iota + 1
	// Hybrid carries Ed25519 and one post-quantum signature.
	Hybrid
	// Pure carries only the post-quantum signature.
	Pure
)

func (k Kind) String() string {
	switch k {
	case Legacy:
		return "legacy"
	case Hybrid:
		return "hybrid"
	case Pure:
		return "pure"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Mode is a signature mode: Legacy, Hybrid(family) or Pure(family).
type Mode struct {
	Kind   Kind
	Family registry.SignatureFamily
}

// LegacyMode returns the Ed25519-only mode.
func LegacyMode() Mode { return Mode{Kind: Legacy} }

// HybridMode returns Hybrid(f).
func HybridMode(f registry.SignatureFamily) Mode { return Mode{Kind: Hybrid, Family: f} }

// PureMode returns Pure(f).
func PureMode(f registry.SignatureFamily) Mode { return Mode{Kind: Pure, Family: f} }

// HasClassical reports whether the mode carries an Ed25519 signature.
func (m Mode) HasClassical() bool { return m.Kind == Legacy || m.Kind == Hybrid }

// HasPostQuantum reports whether the mode carries a post-quantum signature.
func (m Mode) HasPostQuantum() bool { return m.Kind == Hybrid || m.Kind == Pure }

// String returns "legacy", "hybrid-<family>" or "pure-<family>".
func (m Mode) String() string {
	if m.Kind == Legacy {
		return Legacy.String()
	}
	return m.Kind.String() + "-" + m.Family.String()
}

// ParseMode parses the String form of a mode and validates it.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var m Mode
	switch {
	case s == "legacy":
		m = LegacyMode()
	case strings.HasPrefix(s, "pure-"):
		f, err := registry.ParseSignatureFamily(strings.TrimPrefix(s, "pure-"))
		if err != nil {
			return Mode{}, err
		}
		m = PureMode(f)
	case strings.HasPrefix(s, "hybrid-"):
		f, err := registry.ParseSignatureFamily(strings.TrimPrefix(s, "hybrid-"))
		if err != nil {
			return Mode{}, err
		}
		m = HybridMode(f)
	default:
		return Mode{}, qerrors.NewConfigError("sig_mode", s, qerrors.ErrInvalidMode)
	}
	return m, m.Validate()
}

// Validate checks that the mode is well formed and runnable in this build.
func (m Mode) Validate() error {
	switch m.Kind {
	case Legacy:
		if m.Family != 0 {
			return qerrors.NewConfigError("sig_mode", m.String(), qerrors.ErrInvalidMode)
		}
		return nil
	case Hybrid, Pure:
		_, err := registry.Signer(m.Family)
		return err
	}
	return qerrors.NewConfigError("sig_mode", m.String(), qerrors.ErrInvalidMode)
}

// Uint16 packs the mode as kind<<8 | family.
func (m Mode) Uint16() uint16 {
	return uint16(m.Kind)<<8 | uint16(m.Family)
}

// ModeFromUint16 unpacks a persisted mode, checking structure only.
func ModeFromUint16(v uint16) (Mode, error) {
	m := Mode{Kind: Kind(v >> 8), Family: registry.SignatureFamily(v)}
	switch m.Kind {
	case Legacy:
		if m.Family == 0 {
			return m, nil
		}
	case Hybrid, Pure:
		if _, err := registry.Signature(m.Family); err == nil {
			return m, nil
		}
	}
	return Mode{}, fmt.Errorf("%w: signature mode 0x%04x", qerrors.ErrInvalidEncoding, v)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
