// Package migrations embeds the SQL applied to the local SQLite store at
// startup via goose.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
