// Package migrations embeds SQL migration files.
package migrations

import "embed"

// PostgresFS contains the *_up.sql / *_down.sql migrations for PostgreSQL.
//
//go:embed *.sql
var PostgresFS embed.FS
