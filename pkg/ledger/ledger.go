// Package ledger implements the append-only, hash-chained, signed ledger.
//
// Every commit extends the chain
//
//	tip_0 = ""
//	tip_i = SHA3-256(tip_{i-1} || plaintext_i)
//
// signs tip_i under the current signer epoch and encapsulates a fresh
// shared secret to the current KEM epoch. In a confidential ledger the
// payload is sealed under a key derived from that secret and bound to the
// KEM transcript; otherwise it is stored in the clear and marked
// MercyOpen.
//
// Migration never rewrites history. MigrateKEM and MigrateSignature add a
// new key epoch; existing entries keep their epoch, mode, ciphertext and
// signature, and stay readable and verifiable with the keys of their era.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/metrics"
	"github.com/pzverkov/quantum-agility/pkg/store"
)

// Options configures New and Open.
type Options struct {
	// KEMMode, SigMode and Confidential select the initial configuration
	// of a new ledger. Open takes them from the persisted state instead.
	KEMMode      hybridkem.Mode
	SigMode      hybridsig.Mode
	Confidential bool

	// Store persists entries and state. New uses an in-memory store
	// when nil. The ledger owns the store and closes it on Close.
	Store store.Store

	// Gate is consulted before every commit. Defaults to AllowAll.
	Gate Gate

	// Signers resolves verification keys in VerifyChain. Defaults to the
	// ledger's key ring.
	Signers SignerDirectory

	// SaveKeyRing persists the key ring whenever it changes, before any
	// state that refers to the new keys is written.
	SaveKeyRing func(ctx context.Context, ring *KeyRing) error

	Collector *metrics.Collector
	Tracer    metrics.Tracer
	Logger    *metrics.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	// VerifyWorkers bounds parallel signature checks in VerifyChain.
	// Defaults to GOMAXPROCS.
	VerifyWorkers int
}

// Ledger is an append-only ledger. It is safe for concurrent use; commits
// and migrations are serialized, reads and verification run concurrently.
type Ledger struct {
	mu      sync.RWMutex
	closed  bool
	state   state
	entries []*Entry
	keys    *KeyRing

	store    store.Store
	gate     Gate
	signers  SignerDirectory
	saveRing func(ctx context.Context, ring *KeyRing) error
	obs      *metrics.LedgerObserver
	now      func() time.Time
	workers  int
}

func newLedger(opts Options, id uuid.UUID) *Ledger {
	l := &Ledger{
		store:    opts.Store,
		gate:     opts.Gate,
		signers:  opts.Signers,
		saveRing: opts.SaveKeyRing,
		now:      opts.Now,
		workers:  opts.VerifyWorkers,
		obs: metrics.NewLedgerObserver(metrics.LedgerObserverConfig{
			Collector: opts.Collector,
			Tracer:    opts.Tracer,
			Logger:    opts.Logger,
			LedgerID:  id.String(),
		}),
	}
	if l.store == nil {
		l.store = store.NewMemory()
	}
	if l.gate == nil {
		l.gate = AllowAll
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.workers <= 0 {
		l.workers = runtime.GOMAXPROCS(0)
	}
	l.state.ID = id
	return l
}

// New starts a new, empty ledger with fresh keys for opts.KEMMode and
// opts.SigMode. The store must be empty.
func New(ctx context.Context, opts Options) (*Ledger, error) {
	if err := opts.KEMMode.Validate(); err != nil {
		return nil, err
	}
	if err := opts.SigMode.Validate(); err != nil {
		return nil, err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, qerrors.NewCryptoError("ledger.New", err)
	}

	l := newLedger(opts, id)
	ctx, done := l.obs.OnOpen(ctx, true, 0)
	err = l.create(ctx, opts.KEMMode, opts.SigMode, opts.Confidential)
	done(err)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) create(ctx context.Context, kemMode hybridkem.Mode, sigMode hybridsig.Mode, confidential bool) error {
	snap, err := l.store.Load(ctx)
	if err != nil {
		return err
	}
	if len(snap.Entries) > 0 || snap.State != nil {
		return qerrors.NewConfigError("store", "", errors.New("store already holds a ledger"))
	}

	kemPK, kemSK, err := hybridkem.GenerateKeyPair(kemMode)
	if err != nil {
		return err
	}
	sigPK, sigSK, err := hybridsig.GenerateKeyPair(sigMode)
	if err != nil {
		kemSK.Zeroize()
		return err
	}
	now := l.now().UTC()
	ring, _ := NewKeyRing().withKEM(kemMode, kemPK, kemSK, now)
	ring, _, _ = ring.withSigner(sigMode, sigPK, sigSK, now)

	st := state{
		ID:           l.state.ID,
		KEMMode:      kemMode,
		SigMode:      sigMode,
		KEMEpoch:     1,
		SigEpoch:     1,
		Confidential: confidential,
	}
	if err := l.persistKeys(ctx, ring, &st); err != nil {
		ring.Zeroize()
		return err
	}
	l.state, l.keys = st, ring
	return nil
}

// Open loads a ledger from st. ring must hold every epoch the state and
// entries refer to; a ring without secrets opens a ledger that can be
// verified and read for MercyOpen entries only.
func Open(ctx context.Context, st store.Store, ring *KeyRing, opts Options) (*Ledger, error) {
	snap, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}
	if snap.State == nil {
		return nil, qerrors.NewConfigError("store", "", errors.New("store holds no ledger"))
	}
	head, err := parseState(snap.State)
	if err != nil {
		return nil, err
	}

	opts.Store = st
	l := newLedger(opts, head.ID)
	_, done := l.obs.OnOpen(ctx, false, head.Count)
	err = l.load(head, snap.Entries, ring)
	done(err)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) load(head *state, raw [][]byte, ring *KeyRing) error {
	if uint64(len(raw)) != head.Count {
		return fmt.Errorf("%w: state records %d entries, store holds %d", qerrors.ErrInvalidEncoding, head.Count, len(raw))
	}
	kemKey, err := ring.KEM(head.KEMEpoch)
	if err != nil {
		return err
	}
	sigKey, err := ring.Signer(head.SigEpoch)
	if err != nil {
		return err
	}
	if kemKey.Mode != head.KEMMode || sigKey.Mode != head.SigMode {
		return fmt.Errorf("%w: key ring does not match ledger modes", qerrors.ErrWrongEraKey)
	}

	entries := make([]*Entry, len(raw))
	for i, data := range raw {
		e, err := ParseEntry(data)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Index != uint64(i) {
			return fmt.Errorf("%w: entry %d stored at %d", qerrors.ErrInvalidEncoding, e.Index, i)
		}
		entries[i] = e
	}
	l.state, l.entries, l.keys = *head, entries, ring
	return nil
}

// persistKeys saves ring and then st. A failure after the ring is saved
// leaves an unreferenced epoch behind, which is harmless.
func (l *Ledger) persistKeys(ctx context.Context, ring *KeyRing, st *state) error {
	if l.saveRing != nil {
		if err := l.saveRing(ctx, ring); err != nil {
			return err
		}
	}
	data, err := st.MarshalBinary()
	if err != nil {
		return err
	}
	return l.store.PutState(ctx, data)
}

func (l *Ledger) signerDirectory() SignerDirectory {
	if l.signers != nil {
		return l.signers
	}
	return l.keys
}

// ID returns the ledger's identifier.
func (l *Ledger) ID() uuid.UUID {
	return l.state.ID
}

// Len returns the number of committed entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Tip returns the current chain digest, empty before the first commit.
func (l *Ledger) Tip() []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return clone(l.state.Tip)
}

// Modes returns the modes new commits use.
func (l *Ledger) Modes() (hybridkem.Mode, hybridsig.Mode) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.KEMMode, l.state.SigMode
}

// Epochs returns the current KEM and signer epochs.
func (l *Ledger) Epochs() (kem, sig uint32) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.KEMEpoch, l.state.SigEpoch
}

// Confidential reports whether payloads are encrypted.
func (l *Ledger) Confidential() bool {
	return l.state.Confidential
}

// KeyRing returns the current key ring. Rings are replaced on migration;
// secrets of retired and superseded epochs are erased in place.
func (l *Ledger) KeyRing() *KeyRing {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.keys
}

// Entry returns a copy of the entry at index.
func (l *Ledger) Entry(index uint64) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index >= uint64(len(l.entries)) {
		return nil, notFound(index)
	}
	return l.entries[index].Clone(), nil
}

// Entries returns copies of all entries in order.
func (l *Ledger) Entries() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Clone()
	}
	return out
}

// Observer returns the observer the ledger reports to.
func (l *Ledger) Observer() *metrics.LedgerObserver {
	return l.obs
}

// Ping checks that the store is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return qerrors.ErrLedgerClosed
	}
	return l.store.Ping(ctx)
}

// Close erases the key ring and closes the store. Further calls fail
// with ErrLedgerClosed.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.keys.Zeroize()
	return l.store.Close()
}

func notFound(index uint64) error {
	return fmt.Errorf("%w: index %d", qerrors.ErrEntryNotFound, index)
}
