// Package migrations embeds the goose SQL migrations. Each dialect has its
// own directory named after the goose dialect.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite3/*.sql
var Migrations embed.FS
