// Package migrations embeds the PostgreSQL schema so binaries and
// integration tests can migrate without a checkout on disk.
package migrations

import "embed"

// FS holds every *.up.sql / *.down.sql pair
//
//go:embed *.sql
var FS embed.FS
