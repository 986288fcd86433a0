// Package binding is the mobile surface of the ledger, restricted to types
// gomobile can export: ints for modes, byte slices, bools and errors.
//
//	l, err := binding.CreateLedger(binding.KEMHybridLattice, binding.SigHybridLatticeDSA, true)
//	err = l.Commit([]byte("entry"))
//	err = l.Migrate(binding.KEMQuantumSafeHQC)
//	ok := l.VerifyChain()
package binding

import (
	"context"
	"fmt"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/config"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/ledger"
	"github.com/pzverkov/quantum-agility/pkg/registry"
	"github.com/pzverkov/quantum-agility/pkg/store"
	"github.com/pzverkov/quantum-agility/pkg/workspace"
)

// KEM modes.
const (
	KEMLegacy = iota
	KEMHybridLattice
	KEMQuantumSafeLattice
	KEMHybridHQC
	KEMQuantumSafeHQC
	KEMHybridMcEliece
	KEMQuantumSafeMcEliece
)

// Signature modes.
const (
	SigLegacy = iota
	SigHybridLatticeDSA
	SigPureLatticeDSA
	SigHybridHashDSA
	SigPureHashDSA
	SigHybridCompactLatticeDSA
	SigPureCompactLatticeDSA
)

var kemModes = []hybridkem.Mode{
	KEMLegacy:              hybridkem.LegacyMode(),
	KEMHybridLattice:       hybridkem.HybridMode(registry.Lattice),
	KEMQuantumSafeLattice:  hybridkem.QuantumSafeMode(registry.Lattice),
	KEMHybridHQC:           hybridkem.HybridMode(registry.HQC),
	KEMQuantumSafeHQC:      hybridkem.QuantumSafeMode(registry.HQC),
	KEMHybridMcEliece:      hybridkem.HybridMode(registry.McEliece),
	KEMQuantumSafeMcEliece: hybridkem.QuantumSafeMode(registry.McEliece),
}

var sigModes = []hybridsig.Mode{
	SigLegacy:                  hybridsig.LegacyMode(),
	SigHybridLatticeDSA:        hybridsig.HybridMode(registry.LatticeDSA),
	SigPureLatticeDSA:          hybridsig.PureMode(registry.LatticeDSA),
	SigHybridHashDSA:           hybridsig.HybridMode(registry.HashDSA),
	SigPureHashDSA:             hybridsig.PureMode(registry.HashDSA),
	SigHybridCompactLatticeDSA: hybridsig.HybridMode(registry.CompactLatticeDSA),
	SigPureCompactLatticeDSA:   hybridsig.PureMode(registry.CompactLatticeDSA),
}

func kemMode(m int) (hybridkem.Mode, error) {
	if m < 0 || m >= len(kemModes) {
		return hybridkem.Mode{}, qerrors.NewConfigError("kem_mode", fmt.Sprint(m), qerrors.ErrInvalidMode)
	}
	return kemModes[m], kemModes[m].Validate()
}

func sigMode(m int) (hybridsig.Mode, error) {
	if m < 0 || m >= len(sigModes) {
		return hybridsig.Mode{}, qerrors.NewConfigError("sig_mode", fmt.Sprint(m), qerrors.ErrInvalidMode)
	}
	return sigModes[m], sigModes[m].Validate()
}

// KEMModeName returns the configuration name of a KEM mode constant, or
// an empty string when it is out of range.
func KEMModeName(m int) string {
	if m < 0 || m >= len(kemModes) {
		return ""
	}
	return kemModes[m].String()
}

// SigModeName returns the configuration name of a signature mode constant.
func SigModeName(m int) string {
	if m < 0 || m >= len(sigModes) {
		return ""
	}
	return sigModes[m].String()
}

// KEMModeSupported reports whether this build can run the KEM mode.
func KEMModeSupported(m int) bool {
	_, err := kemMode(m)
	return err == nil
}

// SigModeSupported reports whether this build can run the signature mode.
func SigModeSupported(m int) bool {
	_, err := sigMode(m)
	return err == nil
}

// Ledger wraps ledger.Ledger for mobile callers. Calls block; there is no
// context to cancel.
type Ledger struct {
	l *ledger.Ledger
}

// CreateLedger creates an in-memory ledger.
func CreateLedger(kem, sig int, confidential bool) (*Ledger, error) {
	km, err := kemMode(kem)
	if err != nil {
		return nil, err
	}
	sm, err := sigMode(sig)
	if err != nil {
		return nil, err
	}
	l, err := ledger.New(context.Background(), ledger.Options{
		KEMMode:      km,
		SigMode:      sm,
		Confidential: confidential,
	})
	if err != nil {
		return nil, err
	}
	return &Ledger{l: l}, nil
}

// CreatePersistentLedger creates a ledger stored in dataDir with its keys
// sealed under passphrase.
func CreatePersistentLedger(dataDir, passphrase string, kem, sig int, confidential bool) (*Ledger, error) {
	km, err := kemMode(kem)
	if err != nil {
		return nil, err
	}
	sm, err := sigMode(sig)
	if err != nil {
		return nil, err
	}
	cfg := mobileConfig(dataDir)
	cfg.KEMMode, cfg.SigMode, cfg.Confidential = km.String(), sm.String(), confidential
	l, err := workspace.Init(context.Background(), cfg, []byte(passphrase), ledger.Options{})
	if err != nil {
		return nil, err
	}
	return &Ledger{l: l}, nil
}

// OpenPersistentLedger opens a ledger created by CreatePersistentLedger.
func OpenPersistentLedger(dataDir, passphrase string) (*Ledger, error) {
	l, err := workspace.Open(context.Background(), mobileConfig(dataDir), []byte(passphrase), ledger.Options{})
	if err != nil {
		return nil, err
	}
	return &Ledger{l: l}, nil
}

func mobileConfig(dataDir string) *config.Config {
	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.Backend = store.BackendSQLite
	return cfg
}

// Commit appends data.
func (b *Ledger) Commit(data []byte) error {
	_, err := b.l.Commit(context.Background(), data)
	return err
}

// ReadLatest returns the newest entry's plaintext.
func (b *Ledger) ReadLatest() ([]byte, error) {
	return b.l.ReadLatest(context.Background())
}

// Read returns the plaintext at index.
func (b *Ledger) Read(index int64) ([]byte, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: index %d", qerrors.ErrEntryNotFound, index)
	}
	return b.l.ReadEntry(context.Background(), uint64(index))
}

// Migrate switches new commits to the KEM mode.
func (b *Ledger) Migrate(kem int) error {
	m, err := kemMode(kem)
	if err != nil {
		return err
	}
	_, err = b.l.MigrateKEM(context.Background(), m)
	return err
}

// MigrateSignature switches new commits to the signature mode.
func (b *Ledger) MigrateSignature(sig int) error {
	m, err := sigMode(sig)
	if err != nil {
		return err
	}
	_, err = b.l.MigrateSignature(context.Background(), m)
	return err
}

// VerifyChain reports whether every entry and signature verifies.
func (b *Ledger) VerifyChain() bool {
	return b.l.VerifyChain(context.Background())
}

// Len returns the number of entries.
func (b *Ledger) Len() int64 {
	return int64(b.l.Len())
}

// ID returns the ledger identifier.
func (b *Ledger) ID() string {
	return b.l.ID().String()
}

// KEMMode returns the configuration name of the current KEM mode.
func (b *Ledger) KEMMode() string {
	m, _ := b.l.Modes()
	return m.String()
}

// SigMode returns the configuration name of the current signature mode.
func (b *Ledger) SigMode() string {
	_, m := b.l.Modes()
	return m.String()
}

// Close releases the ledger and erases its keys.
func (b *Ledger) Close() error {
	return b.l.Close()
}
