package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
)

// Key layout:
//
//	ledger:entry:<uint64 BE index>  encoded entry
//	ledger:state                    state record
//	ledger:count                    uint64 BE number of entries
var (
	prefixEntry = []byte("ledger:entry:")
	keyState    = []byte("ledger:state")
	keyCount    = []byte("ledger:count")
)

// Badger is a Store backed by BadgerDB.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger store in dir. An empty dir opens
// an in-memory instance.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, qerrors.NewStorageError(BackendBadger, "open", err)
	}
	return &Badger{db: db}, nil
}

// NewBadger wraps an already open database.
func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

// Append writes entry at index, and state when non-nil, in one transaction.
// It fails with ErrIndexConflict unless index equals the stored count.
func (b *Badger) Append(ctx context.Context, index uint64, entry, state []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		count, err := readCount(txn)
		if err != nil {
			return err
		}
		if index != count {
			return qerrors.ErrIndexConflict
		}
		if err := txn.Set(entryKey(index), clone(entry)); err != nil {
			return err
		}
		if state != nil {
			if err := txn.Set(keyState, clone(state)); err != nil {
				return err
			}
		}
		return txn.Set(keyCount, binary.BigEndian.AppendUint64(nil, count+1))
	})
	if err != nil {
		return qerrors.NewStorageError(BackendBadger, "append", mapBadgerErr(err))
	}
	return nil
}

// PutState replaces the state record.
func (b *Badger) PutState(ctx context.Context, state []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyState, clone(state))
	})
	if err != nil {
		return qerrors.NewStorageError(BackendBadger, "put-state", mapBadgerErr(err))
	}
	return nil
}

// Load reads every entry in index order together with the state record.
// A gap in the entry keys or a count mismatch is reported as corruption.
func (b *Badger) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := &Snapshot{}
	err := b.db.View(func(txn *badger.Txn) error {
		count, err := readCount(txn)
		if err != nil {
			return err
		}

		snap.Entries = make([][]byte, 0, count)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefixEntry); it.ValidForPrefix(prefixEntry); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			idx := binary.BigEndian.Uint64(it.Item().Key()[len(prefixEntry):])
			if idx != uint64(len(snap.Entries)) {
				return fmt.Errorf("entry %d missing", len(snap.Entries))
			}
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			snap.Entries = append(snap.Entries, v)
		}
		if uint64(len(snap.Entries)) != count {
			return fmt.Errorf("found %d entries, count says %d", len(snap.Entries), count)
		}

		item, err := txn.Get(keyState)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		snap.State, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, qerrors.NewStorageError(BackendBadger, "load", mapBadgerErr(err))
	}
	return snap, nil
}

// Ping reports ErrStoreClosed once the database is closed.
func (b *Badger) Ping(ctx context.Context) error {
	if b.db.IsClosed() {
		return qerrors.NewStorageError(BackendBadger, "ping", qerrors.ErrStoreClosed)
	}
	return ctx.Err()
}

// Close closes the database. Closing twice is a no-op.
func (b *Badger) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return qerrors.NewStorageError(BackendBadger, "close", err)
	}
	return nil
}

func readCount(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get(keyCount)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var count uint64
	err = item.Value(func(v []byte) error {
		if len(v) != 8 {
			return fmt.Errorf("corrupt entry count")
		}
		count = binary.BigEndian.Uint64(v)
		return nil
	})
	return count, err
}

func entryKey(index uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, prefixEntry...), index)
}

func mapBadgerErr(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return qerrors.ErrStoreClosed
	}
	return err
}
