package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/store/migrations"
)

const migrationTable = "schema_migrations"

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite store at path and applies the embedded
// migrations. ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, qerrors.NewConfigError("store.path", "", fmt.Errorf("storage path is required"))
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, qerrors.NewStorageError(BackendSQLite, "open", err)
	}
	// One connection keeps ":memory:" a single database and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, qerrors.NewStorageError(BackendSQLite, "ping", err)
	}
	if err := applyMigrations(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, qerrors.NewStorageError(BackendSQLite, "migrate", err)
	}
	return &SQLite{db: db}, nil
}

// Append inserts entry at index, and upserts state when non-nil, in one
// transaction.
func (s *SQLite) Append(ctx context.Context, index uint64, entry, state []byte) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var count uint64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&count); err != nil {
			return err
		}
		if index != count {
			return qerrors.ErrIndexConflict
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO ledger_entries (idx, data) VALUES (?, ?)`, int64(index), nonNilBlob(entry)); err != nil {
			return err
		}
		if state != nil {
			return putState(ctx, tx, state)
		}
		return nil
	})
	if err != nil {
		return qerrors.NewStorageError(BackendSQLite, "append", err)
	}
	return nil
}

// PutState upserts the state record.
func (s *SQLite) PutState(ctx context.Context, state []byte) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return putState(ctx, tx, state)
	})
	if err != nil {
		return qerrors.NewStorageError(BackendSQLite, "put-state", err)
	}
	return nil
}

// Load reads every entry ordered by index together with the state record.
func (s *SQLite) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT idx, data FROM ledger_entries ORDER BY idx`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				idx  int64
				data []byte
			)
			if err := rows.Scan(&idx, &data); err != nil {
				return err
			}
			if idx != int64(len(snap.Entries)) {
				return fmt.Errorf("entry %d missing", len(snap.Entries))
			}
			snap.Entries = append(snap.Entries, data)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx, `SELECT data FROM ledger_state WHERE id = 1`).Scan(&snap.State)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, qerrors.NewStorageError(BackendSQLite, "load", err)
	}
	return snap, nil
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return qerrors.NewStorageError(BackendSQLite, "ping", mapSQLErr(err))
	}
	return nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLErr(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func putState(ctx context.Context, tx *sql.Tx, state []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_state (id, data, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		nonNilBlob(state), time.Now().UTC().UnixMilli())
	return err
}

// applyMigrations runs each embedded *.sql file once, in name order, and
// records it in schema_migrations.
func applyMigrations(db *sql.DB, migrationFS fs.FS) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var found int
		err := db.QueryRow(`SELECT 1 FROM `+migrationTable+` WHERE name = ?`, name).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", name, err)
		}

		content, err := fs.ReadFile(migrationFS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(upSection(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`, name, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// upSection returns the SQL between "-- +migrate Up" and "-- +migrate Down".
func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	if i := strings.Index(content, up); i >= 0 {
		content = content[i+len(up):]
	}
	if i := strings.Index(content, down); i >= 0 {
		content = content[:i]
	}
	return content
}

func mapSQLErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "database is closed") {
		return qerrors.ErrStoreClosed
	}
	return err
}

func nonNilBlob(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
