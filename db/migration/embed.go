// Package migration embeds the SQL schema migrations.
package migration

import "embed"

// FS holds every *.sql migration file of the ledger schema.
//
//go:embed *.sql
var FS embed.FS
