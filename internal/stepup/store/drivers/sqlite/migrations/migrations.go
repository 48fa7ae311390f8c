// Package migrations embeds the client state schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
