// Package migrations embeds the SQL migration files so binaries and
// tests can run them without a copy of the source tree on disk.
package migrations

import "embed"

// FS holds all .sql migration files.
//
//go:embed *.sql
var FS embed.FS
