package hybridkem

import (
	"fmt"
	"strings"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/registry"
)

// Kind selects which components a migration mode carries.
type Kind uint8

const (
	// Legacy is classical-only (X25519).
	Legacy Kind = iota + 1
	// Hybrid carries X25519 and one post-quantum family; both contribute.
	Hybrid
	// QuantumSafe carries only the post-quantum family.
	QuantumSafe
)

func (k Kind) String() string {
	switch k {
	case Legacy:
		return "legacy"
	case Hybrid:
		return "hybrid"
	case QuantumSafe:
		return "quantum-safe"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Mode is a migration mode: Legacy, Hybrid(family) or QuantumSafe(family).
// The zero value is invalid.
type Mode struct {
	Kind   Kind
	Family registry.KEMFamily
}

// LegacyMode returns the classical-only mode.
func LegacyMode() Mode { return Mode{Kind: Legacy} }

// HybridMode returns Hybrid(f).
func HybridMode(f registry.KEMFamily) Mode { return Mode{Kind: Hybrid, Family: f} }

// QuantumSafeMode returns QuantumSafe(f).
func QuantumSafeMode(f registry.KEMFamily) Mode { return Mode{Kind: QuantumSafe, Family: f} }

// HasClassical reports whether the mode carries an X25519 component.
func (m Mode) HasClassical() bool { return m.Kind == Legacy || m.Kind == Hybrid }

// HasPostQuantum reports whether the mode carries a post-quantum component.
func (m Mode) HasPostQuantum() bool { return m.Kind == Hybrid || m.Kind == QuantumSafe }

// String returns "legacy", "hybrid-<family>" or "quantum-safe-<family>".
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
	case strings.HasPrefix(s, "quantum-safe-"):
		f, err := registry.ParseKEMFamily(strings.TrimPrefix(s, "quantum-safe-"))
		if err != nil {
			return Mode{}, err
		}
		m = QuantumSafeMode(f)
	case strings.HasPrefix(s, "hybrid-"):
		f, err := registry.ParseKEMFamily(strings.TrimPrefix(s, "hybrid-"))
		if err != nil {
			return Mode{}, err
		}
		m = HybridMode(f)
	default:
		return Mode{}, qerrors.NewConfigError("kem_mode", s, qerrors.ErrInvalidMode)
	}
	return m, m.Validate()
}

// Validate checks that the mode is well formed and that its family can run
// in this build.
func (m Mode) Validate() error {
	switch m.Kind {
	case Legacy:
		if m.Family != 0 {
			return qerrors.NewConfigError("kem_mode", m.String(), qerrors.ErrInvalidMode)
		}
		return nil
	case Hybrid, QuantumSafe:
		_, err := registry.KEMScheme(m.Family)
		return err
	}
	return qerrors.NewConfigError("kem_mode", m.String(), qerrors.ErrInvalidMode)
}

// Uint16 packs the mode as kind<<8 | family for persistence.
func (m Mode) Uint16() uint16 {
	return uint16(m.Kind)<<8 | uint16(m.Family)
}

// ModeFromUint16 unpacks a persisted mode. Only the structure is checked;
// a family that is unsupported in this build still decodes, so that old
// entries can be listed and their signatures verified.
func ModeFromUint16(v uint16) (Mode, error) {
	m := Mode{Kind: Kind(v >> 8), Family: registry.KEMFamily(v)}
	switch m.Kind {
	case Legacy:
		if m.Family == 0 {
			return m, nil
		}
	case Hybrid, QuantumSafe:
		if _, err := registry.KEM(m.Family); err == nil {
			return m, nil
		}
	}
	return Mode{}, fmt.Errorf("%w: kem mode 0x%04x", qerrors.ErrInvalidEncoding, v)
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
