// Package migrations embeds the PostgreSQL schema of the enrollment database.
package migrations

import "embed"

// FS holds the numbered migration files.
//
//go:embed *.sql
var FS embed.FS
