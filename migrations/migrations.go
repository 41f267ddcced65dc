// Package migrations embeds the goose migration sets.
package migrations

import "embed"

//go:embed demo/*.sql state/*.sql
var FS embed.FS
