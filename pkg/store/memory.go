package store

import (
	"context"
	"sync"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
)

// Memory is an in-process Store. It copies on the way in and out.
type Memory struct {
	mu      sync.RWMutex
	entries [][]byte
	state   []byte
	closed  bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append stores a copy of entry at index and, when non-nil, of state.
func (m *Memory) Append(ctx context.Context, index uint64, entry, state []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return qerrors.NewStorageError(BackendMemory, "append", qerrors.ErrStoreClosed)
	}
	if index != uint64(len(m.entries)) {
		return qerrors.NewStorageError(BackendMemory, "append", qerrors.ErrIndexConflict)
	}
	m.entries = append(m.entries, clone(entry))
	if state != nil {
		m.state = clone(state)
	}
	return nil
}

// PutState replaces the state record with a copy of state.
func (m *Memory) PutState(ctx context.Context, state []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return qerrors.NewStorageError(BackendMemory, "put-state", qerrors.ErrStoreClosed)
	}
	m.state = clone(state)
	return nil
}

// Load returns copies of every entry and the state record.
func (m *Memory) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, qerrors.NewStorageError(BackendMemory, "load", qerrors.ErrStoreClosed)
	}
	snap := &Snapshot{Entries: make([][]byte, len(m.entries)), State: clone(m.state)}
	for i, e := range m.entries {
		snap.Entries[i] = clone(e)
	}
	return snap, nil
}

// Ping fails once the store is closed.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return qerrors.NewStorageError(BackendMemory, "ping", qerrors.ErrStoreClosed)
	}
	return ctx.Err()
}

// Close marks the store closed; later calls fail with ErrStoreClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
