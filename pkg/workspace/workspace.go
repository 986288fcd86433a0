// Package workspace keeps a ledger on disk: entries and state in the
// configured store, and the key ring in an encrypted key file beside it.
//
//	<data_dir>/ledger      badger directory
//	<data_dir>/ledger.db   sqlite database
//	<data_dir>/keys.pqk    key ring, argon2id + XChaCha20-Poly1305
//
// The key file is rewritten atomically whenever the key ring changes and
// before the ledger state refers to the new keys.
package workspace

import (
	"context"
	"errors"
	"os"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/config"
	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/ledger"
	"github.com/pzverkov/quantum-agility/pkg/store"
)

// Init creates a new ledger in cfg.DataDir with the configured modes.
// A data directory that already holds a key file is refused.
func Init(ctx context.Context, cfg *config.Config, passphrase []byte, opts ledger.Options) (*ledger.Ledger, error) {
	if len(passphrase) == 0 {
		return nil, qerrors.NewConfigError("passphrase", "", errors.New("required"))
	}
	if Exists(cfg) {
		return nil, qerrors.NewConfigError("data_dir", cfg.DataDir, errors.New("already holds a ledger"))
	}
	kem, sig, err := cfg.Modes()
	if err != nil {
		return nil, err
	}

	st, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	opts = options(cfg, passphrase, opts)
	opts.Store = st
	opts.KEMMode, opts.SigMode, opts.Confidential = kem, sig, cfg.Confidential

	l, err := ledger.New(ctx, opts)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return l, nil
}

// Open loads the ledger in cfg.DataDir, unlocking its key file with
// passphrase.
func Open(ctx context.Context, cfg *config.Config, passphrase []byte, opts ledger.Options) (*ledger.Ledger, error) {
	ring, err := ReadKeyRing(cfg, passphrase)
	if err != nil {
		return nil, err
	}
	st, err := OpenStore(cfg)
	if err != nil {
		ring.Zeroize()
		return nil, err
	}
	l, err := ledger.Open(ctx, st, ring, options(cfg, passphrase, opts))
	if err != nil {
		ring.Zeroize()
		_ = st.Close()
		return nil, err
	}
	return l, nil
}

// Exists reports whether cfg.DataDir holds a key file.
func Exists(cfg *config.Config) bool {
	_, err := os.Stat(cfg.KeyFilePath())
	return err == nil
}

// OpenStore opens the configured backend, creating the data directory.
func OpenStore(cfg *config.Config) (store.Store, error) {
	if cfg.Backend != store.BackendMemory {
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, qerrors.NewStorageError(cfg.Backend, "mkdir", err)
		}
	}
	return store.Open(cfg.Backend, cfg.StorePath())
}

// ReadKeyRing decrypts and parses the key file.
func ReadKeyRing(cfg *config.Config, passphrase []byte) (*ledger.KeyRing, error) {
	if len(passphrase) == 0 {
		return nil, qerrors.NewConfigError("passphrase", "", errors.New("required"))
	}
	raw, err := store.ReadKeyFile(cfg.KeyFilePath(), passphrase)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(raw)
	return ledger.ParseKeyRing(raw)
}

// options fills in the parts of opts that come from the configuration.
func options(cfg *config.Config, passphrase []byte, opts ledger.Options) ledger.Options {
	params := cfg.KeyFileParams()
	path := cfg.KeyFilePath()
	pass := append([]byte{}, passphrase...)
	opts.SaveKeyRing = func(_ context.Context, ring *ledger.KeyRing) error {
		data, err := ring.MarshalBinary()
		if err != nil {
			return err
		}
		defer crypto.Zeroize(data)
		return store.WriteKeyFile(path, data, pass, params)
	}

	var gates []ledger.Gate
	if cfg.MaxEntrySize > 0 {
		gates = append(gates, ledger.MaxSizeGate(cfg.MaxEntrySize))
	}
	if cfg.CommitRate > 0 {
		gates = append(gates, ledger.RateGate(cfg.CommitRate, cfg.CommitBurst))
	}
	if len(gates) > 0 {
		if opts.Gate != nil {
			gates = append(gates, opts.Gate)
		}
		opts.Gate = ledger.AllGates(gates...)
	}
	if opts.VerifyWorkers == 0 {
		opts.VerifyWorkers = cfg.VerifyWorkers
	}
	return opts
}
