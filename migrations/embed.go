// Package migrations embeds the SQL migration files into the binary, so the
// service can create its schema without the files on disk.
package migrations

import "embed"

// FS holds every migration file at its root. Pass it to
// database.DB.Migrate with dir ".".
//
//go:embed *.sql
var FS embed.FS
