// Package migrations holds the SQL schema, embedded so the binaries carry it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
