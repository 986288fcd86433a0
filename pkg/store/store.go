// Package store persists a ledger durably.
//
// A ledger is stored as an ordered sequence of encoded entries plus one
// state record (tip digest, modes, key epochs). Append writes an entry and
// the new state in one transaction, so after a crash the store holds either
// the old ledger or the new one, never an entry without its tip.
//
// Records are opaque here; their versioned encoding belongs to the ledger
// package.
package store

import (
	"context"
	"fmt"
	"strings"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
)

// Store is the persistence contract of the ledger.
type Store interface {
	// Append stores entry at index together with state. index must equal
	// the number of stored entries, otherwise ErrIndexConflict. A nil
	// state leaves the stored state unchanged.
	Append(ctx context.Context, index uint64, entry, state []byte) error

	// PutState replaces the state record.
	PutState(ctx context.Context, state []byte) error

	// Load returns every entry in order and the current state. An empty
	// store returns an empty snapshot.
	Load(ctx context.Context) (*Snapshot, error)

	// Ping checks that the backend is usable.
	Ping(ctx context.Context) error

	Close() error
}

// Snapshot is the full content of a store.
type Snapshot struct {
	Entries [][]byte
	State   []byte
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Open opens a store of the named backend. path is ignored for memory.
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendBadger:
		return OpenBadger(path)
	case BackendSQLite:
		return OpenSQLite(path)
	}
	return nil, qerrors.NewConfigError("store.backend", backend, fmt.Errorf("unknown storage backend"))
}
