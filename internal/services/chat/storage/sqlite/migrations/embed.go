package migrations

import "embed"

// FS contains embedded SQLite migrations for chat message storage.
//
//go:embed *.sql
var FS embed.FS
