// Package migrations embeds the SQLite schema of the ledger store.
package migrations

import "embed"

// FS holds the ordered *.sql migration files.
//
//go:embed *.sql
var FS embed.FS
