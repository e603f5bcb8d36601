// Package migrations embeds the MySQL schema.
package migrations

import "embed"

// Files holds every SQL migration, applied in file name order.
//
//go:embed *.sql
var Files embed.FS
