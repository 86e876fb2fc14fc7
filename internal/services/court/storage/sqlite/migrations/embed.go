package migrations

import "embed"

// FS contains embedded SQLite migrations for court storage.
//
//go:embed *.sql
var FS embed.FS
