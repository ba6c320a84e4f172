// Package migrations embeds the SQL schema applied at startup.
package migrations

import "embed"

// Files holds the migrations in lexical apply order.
//
//go:embed *.sql
var Files embed.FS
